package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/config"
	"github.com/gdg-garage/club-booking-api/internal/database"
	"github.com/gdg-garage/club-booking-api/internal/events"
	"github.com/gdg-garage/club-booking-api/internal/lockset"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/notifier"
	"github.com/gdg-garage/club-booking-api/internal/policy"
	"github.com/gdg-garage/club-booking-api/internal/scheduling"
	"gorm.io/gorm"
)

var (
	fixedNow = time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	coach    = auth.Principal{ID: "coach-1", Role: policy.RoleCoach, Email: "coach@club.io"}
	member   = auth.Principal{ID: "member-1", Role: policy.RoleMember, Email: "member@club.io"}
	other    = auth.Principal{ID: "member-2", Role: policy.RoleMember, Email: "other@club.io"}
	admin    = auth.Principal{ID: "admin-1", Role: policy.RoleAdmin, Email: "admin@club.io"}
)

type recordingGateway struct {
	mu sync.Mutex
	to []string
}

func (g *recordingGateway) Send(_ context.Context, to, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.to = append(g.to, to)
	return nil
}

type fixture struct {
	db       *gorm.DB
	locks    *lockset.Set
	slots    *scheduling.Catalog
	events   *events.Catalog
	ledger   *Ledger
	dispatch *notifier.Dispatcher
	gateway  *recordingGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	gw := &recordingGateway{}
	d := notifier.NewDispatcher(gw, time.Second)
	locks := lockset.New()
	limits := config.DefaultLimits()
	slots := scheduling.NewCatalog(db, locks, limits)
	evts := events.NewCatalog(db, locks, limits, d, events.WithClock(func() time.Time { return fixedNow }))
	return &fixture{
		db:       db,
		locks:    locks,
		slots:    slots,
		events:   evts,
		ledger:   NewLedger(db, locks, slots, evts, d),
		dispatch: d,
		gateway:  gw,
	}
}

func (f *fixture) slot(t *testing.T, capacity int) *models.Slot {
	t.Helper()
	s, err := f.slots.CreateSlot(context.Background(), coach, scheduling.SlotDetails{
		Title:     "Morning drills",
		Date:      "2025-01-10",
		StartTime: "10:00",
		EndTime:   "11:00",
		Venue:     "Court A",
		Capacity:  capacity,
	})
	if err != nil {
		t.Fatalf("CreateSlot returned error: %v", err)
	}
	return s
}

func (f *fixture) event(t *testing.T, capacity int, approve bool) *models.Event {
	t.Helper()
	ctx := context.Background()
	e, err := f.events.SubmitEvent(ctx, member, events.EventDetails{
		Name:      "Club Open Day",
		Venue:     "Main Hall",
		Date:      "2025-01-20",
		StartTime: "09:00",
		EndTime:   "17:00",
		Capacity:  capacity,
	})
	if err != nil {
		t.Fatalf("SubmitEvent returned error: %v", err)
	}
	if approve {
		if e, err = f.events.Approve(ctx, e.ID, admin); err != nil {
			t.Fatalf("Approve returned error: %v", err)
		}
	}
	return e
}

func principal(i int) auth.Principal {
	return auth.Principal{ID: fmt.Sprintf("member-%d", 100+i), Role: policy.RoleMember}
}

func TestEnrollInSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.slot(t, 2)

	got, err := f.ledger.EnrollInSlot(ctx, slot.ID, member)
	if err != nil {
		t.Fatalf("EnrollInSlot returned error: %v", err)
	}
	if got.EnrolledCount != 1 || len(got.EnrolledPrincipalIDs) != 1 || got.EnrolledPrincipalIDs[0] != member.ID {
		t.Errorf("unexpected slot after enroll %+v", got)
	}

	t.Run("Duplicate", func(t *testing.T) {
		_, err := f.ledger.EnrollInSlot(ctx, slot.ID, member)
		if !apperr.Is(err, apperr.CodeDuplicate) {
			t.Fatalf("expected duplicate error, got %v", err)
		}
		s, _ := f.slots.GetSlot(ctx, slot.ID)
		if s.EnrolledCount != 1 || len(s.EnrolledPrincipalIDs) != 1 {
			t.Errorf("expected one enrollment, got %+v", s)
		}
	})

	t.Run("CapacityExceeded", func(t *testing.T) {
		if _, err := f.ledger.EnrollInSlot(ctx, slot.ID, other); err != nil {
			t.Fatalf("expected second seat, got %v", err)
		}
		_, err := f.ledger.EnrollInSlot(ctx, slot.ID, admin)
		if !apperr.Is(err, apperr.CodeCapacityExceeded) {
			t.Fatalf("expected capacity exceeded, got %v", err)
		}
		if apperr.MetadataOf(err)["capacity"] != "2" {
			t.Errorf("expected capacity in metadata, got %v", apperr.MetadataOf(err))
		}
	})

	t.Run("DuplicateReportedBeforeCapacity", func(t *testing.T) {
		_, err := f.ledger.EnrollInSlot(ctx, slot.ID, other)
		if !apperr.Is(err, apperr.CodeDuplicate) {
			t.Fatalf("expected duplicate error on a full slot, got %v", err)
		}
	})

	t.Run("MissingSlot", func(t *testing.T) {
		if _, err := f.ledger.EnrollInSlot(ctx, "missing", member); !apperr.Is(err, apperr.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestWithdrawFromSlot_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.slot(t, 3)

	f.ledger.EnrollInSlot(ctx, slot.ID, member)
	f.ledger.EnrollInSlot(ctx, slot.ID, other)

	first, err := f.ledger.WithdrawFromSlot(ctx, slot.ID, member)
	if err != nil {
		t.Fatalf("WithdrawFromSlot returned error: %v", err)
	}
	second, err := f.ledger.WithdrawFromSlot(ctx, slot.ID, member)
	if err != nil {
		t.Fatalf("second WithdrawFromSlot returned error: %v", err)
	}

	for _, s := range []*models.Slot{first, second} {
		if s.EnrolledCount != 1 || len(s.EnrolledPrincipalIDs) != 1 || s.EnrolledPrincipalIDs[0] != other.ID {
			t.Errorf("unexpected slot after withdraw %+v", s)
		}
	}

	if _, err := f.ledger.WithdrawFromSlot(ctx, "missing", member); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not found for a missing slot, got %v", err)
	}

	// The freed seat can be taken again.
	if _, err := f.ledger.EnrollInSlot(ctx, slot.ID, member); err != nil {
		t.Errorf("expected re-enroll to succeed, got %v", err)
	}
}

func TestEnrollInSlot_ConcurrentLastSeat(t *testing.T) {
	for _, shared := range []bool{true, false} {
		t.Run(fmt.Sprintf("SharedLocks=%v", shared), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			slot := f.slot(t, 3)
			for i := 0; i < 2; i++ {
				if _, err := f.ledger.EnrollInSlot(ctx, slot.ID, principal(i)); err != nil {
					t.Fatalf("seed enroll returned error: %v", err)
				}
			}

			const n = 20
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				// Without shared locks every request goes through its own ledger,
				// leaving the conditional write as the only guard.
				l := f.ledger
				if !shared {
					l = NewLedger(f.db, lockset.New(), f.slots, f.events, f.dispatch)
				}
				wg.Add(1)
				go func(i int, l *Ledger) {
					defer wg.Done()
					_, errs[i] = l.EnrollInSlot(ctx, slot.ID, principal(10+i))
				}(i, l)
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				switch {
				case err == nil:
					wins++
				case !apperr.Is(err, apperr.CodeCapacityExceeded):
					t.Errorf("unexpected error %v", err)
				}
			}
			if wins != 1 {
				t.Fatalf("expected exactly one enrollment to succeed, got %d", wins)
			}

			s, _ := f.slots.GetSlot(ctx, slot.ID)
			if s.EnrolledCount != 3 || len(s.EnrolledPrincipalIDs) != 3 {
				t.Errorf("expected a full slot of 3, got count=%d ids=%d", s.EnrolledCount, len(s.EnrolledPrincipalIDs))
			}
		})
	}
}

func TestRegisterForEvent_Capacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.event(t, 2, true)

	for _, email := range []string{"ana@example.com", "ben@example.com"} {
		reg, err := f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Guest", Email: email})
		if err != nil {
			t.Fatalf("RegisterForEvent(%s) returned error: %v", email, err)
		}
		if !reg.RegisteredAt.Equal(fixedNow) {
			t.Errorf("expected server-assigned registration time, got %v", reg.RegisteredAt)
		}
	}

	_, err := f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Late", Email: "cat@example.com"})
	if !apperr.Is(err, apperr.CodeCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}

	stored, _ := f.events.GetEvent(ctx, event.ID)
	if stored.RegisteredCount != 2 || len(stored.Registrations) != 2 {
		t.Errorf("expected 2 registrations, got count=%d rows=%d", stored.RegisteredCount, len(stored.Registrations))
	}
	if stored.Registrations[0].Email != "ana@example.com" {
		t.Errorf("expected arrival order, got %s first", stored.Registrations[0].Email)
	}

	f.dispatch.Wait()
	if len(f.gateway.to) != 3 {
		t.Errorf("expected submitter and two attendees notified, got %v", f.gateway.to)
	}
}

func TestRegisterForEvent_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("NotApproved", func(t *testing.T) {
		pending := f.event(t, 5, false)
		_, err := f.ledger.RegisterForEvent(ctx, pending.ID, Attendee{Name: "Guest", Email: "guest@example.com"})
		if !apperr.Is(err, apperr.CodeNotApproved) {
			t.Fatalf("expected not approved, got %v", err)
		}
	})

	t.Run("DuplicateEmailCaseInsensitive", func(t *testing.T) {
		event := f.event(t, 5, true)
		if _, err := f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Guest", Email: "Guest@Example.com"}); err != nil {
			t.Fatalf("RegisterForEvent returned error: %v", err)
		}
		_, err := f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Again", Email: " guest@example.COM "})
		if !apperr.Is(err, apperr.CodeDuplicateEmail) {
			t.Fatalf("expected duplicate email, got %v", err)
		}
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		event := f.event(t, 5, true)
		_, err := f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Guest", Email: "not-an-email"})
		if !apperr.Is(err, apperr.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("MissingEvent", func(t *testing.T) {
		_, err := f.ledger.RegisterForEvent(ctx, "missing", Attendee{Name: "Guest", Email: "guest@example.com"})
		if !apperr.Is(err, apperr.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestRegisterForEvent_ConcurrentLastSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.event(t, 1, true)

	const n = 15
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.RegisterForEvent(ctx, event.ID, Attendee{
				Name:  "Guest",
				Email: fmt.Sprintf("guest%d@example.com", i),
			})
		}(i)
	}
	wg.Wait()
	f.dispatch.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one registration, got %d", wins)
	}
}

func TestCancelRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.event(t, 1, true)
	f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Guest", Email: "guest@example.com"})

	if err := f.ledger.CancelRegistration(ctx, event.ID, "guest@example.com", other); !apperr.Is(err, apperr.CodeAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := f.ledger.CancelRegistration(ctx, event.ID, "GUEST@example.com", member); err != nil {
			t.Fatalf("CancelRegistration attempt %d returned error: %v", i, err)
		}
	}

	stored, _ := f.events.GetEvent(ctx, event.ID)
	if stored.RegisteredCount != 0 || len(stored.Registrations) != 0 {
		t.Errorf("expected no registrations, got count=%d rows=%d", stored.RegisteredCount, len(stored.Registrations))
	}

	if _, err := f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Next", Email: "next@example.com"}); err != nil {
		t.Errorf("expected freed seat to be available, got %v", err)
	}
	f.dispatch.Wait()
}

func TestListRegistrations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.event(t, 5, true)
	f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Guest", Email: "guest@example.com"})
	f.dispatch.Wait()

	if _, err := f.ledger.ListRegistrations(ctx, event.ID, other); !apperr.Is(err, apperr.CodeAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	for _, p := range []auth.Principal{member, admin} {
		regs, err := f.ledger.ListRegistrations(ctx, event.ID, p)
		if err != nil {
			t.Fatalf("ListRegistrations(%s) returned error: %v", p.ID, err)
		}
		if len(regs) != 1 || regs[0].Email != "guest@example.com" {
			t.Errorf("unexpected registrations %+v", regs)
		}
	}
}

func TestCapacityReductionAfterRegistrations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.event(t, 3, true)
	for i := 0; i < 2; i++ {
		f.ledger.RegisterForEvent(ctx, event.ID, Attendee{Name: "Guest", Email: fmt.Sprintf("g%d@example.com", i)})
	}
	f.dispatch.Wait()

	one := 1
	_, err := f.events.UpdateEvent(ctx, event.ID, admin, events.EventPatch{Capacity: &one})
	if !apperr.Is(err, apperr.CodeCapacityTooLow) {
		t.Fatalf("expected capacity too low, got %v", err)
	}
}

func TestListEnrollments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.slot(t, 5)
	f.ledger.EnrollInSlot(ctx, slot.ID, member)

	mine, err := f.ledger.ListEnrollments(ctx, member.ID)
	if err != nil {
		t.Fatalf("ListEnrollments returned error: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != slot.ID {
		t.Errorf("expected the enrolled slot, got %+v", mine)
	}
	if none, _ := f.ledger.ListEnrollments(ctx, other.ID); len(none) != 0 {
		t.Errorf("expected no enrollments for other, got %d", len(none))
	}
}
