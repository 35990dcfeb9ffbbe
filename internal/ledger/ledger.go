// Package ledger records who holds a seat in a slot or an event.
//
// Every seat is taken with a conditional counter increment that only succeeds
// while the stored count is below capacity, inside the same transaction as the
// enrollment row. The unique indexes on (slot, principal) and (event, email)
// back up the duplicate checks.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/database"
	"github.com/gdg-garage/club-booking-api/internal/events"
	"github.com/gdg-garage/club-booking-api/internal/lockset"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/notifier"
	"github.com/gdg-garage/club-booking-api/internal/policy"
	"github.com/gdg-garage/club-booking-api/internal/scheduling"
	"github.com/gdg-garage/club-booking-api/internal/validate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attendee is a public event registration.
type Attendee struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type Ledger struct {
	db     *gorm.DB
	locks  *lockset.Set
	slots  *scheduling.Catalog
	events *events.Catalog
	notify *notifier.Dispatcher
}

func NewLedger(db *gorm.DB, locks *lockset.Set, slots *scheduling.Catalog, evts *events.Catalog, notify *notifier.Dispatcher) *Ledger {
	if locks == nil {
		locks = lockset.New()
	}
	return &Ledger{db: db, locks: locks, slots: slots, events: evts, notify: notify}
}

// EnrollInSlot gives the principal a seat in the slot.
func (l *Ledger) EnrollInSlot(ctx context.Context, slotID string, principal auth.Principal) (*models.Slot, error) {
	if err := policy.Check(policy.SlotEnroll, policy.Subject{Role: principal.Role}); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(lockset.SlotKey(slotID))
	defer unlock()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.Slot
		if err := database.ForUpdate(tx).First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("slot", slotID)
			}
			return fmt.Errorf("load slot: %w", err)
		}

		var held int64
		if err := tx.Model(&models.SlotEnrollment{}).
			Where("slot_id = ? AND principal_id = ?", slotID, principal.ID).
			Count(&held).Error; err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}
		if held > 0 {
			return alreadyEnrolled(slotID, principal.ID)
		}

		res := tx.Model(&models.Slot{}).
			Where("id = ? AND enrolled_count < capacity", slotID).
			UpdateColumn("enrolled_count", gorm.Expr("enrolled_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("take seat: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.CapacityExceeded(slot.Capacity).With("slot_id", slotID)
		}

		enrollment := models.SlotEnrollment{
			ID:             uuid.New().String(),
			SlotID:         slotID,
			PrincipalID:    principal.ID,
			PrincipalEmail: principal.Email,
		}
		if err := tx.Create(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return alreadyEnrolled(slotID, principal.ID)
			}
			return fmt.Errorf("insert enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.slots.GetSlot(ctx, slotID)
}

// WithdrawFromSlot releases the principal's seat. Withdrawing without a seat is a no-op.
func (l *Ledger) WithdrawFromSlot(ctx context.Context, slotID string, principal auth.Principal) (*models.Slot, error) {
	unlock := l.locks.Lock(lockset.SlotKey(slotID))
	defer unlock()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.Slot
		if err := database.ForUpdate(tx).First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("slot", slotID)
			}
			return fmt.Errorf("load slot: %w", err)
		}

		res := tx.Where("slot_id = ? AND principal_id = ?", slotID, principal.ID).
			Delete(&models.SlotEnrollment{})
		if res.Error != nil {
			return fmt.Errorf("delete enrollment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Slot{}).
			Where("id = ? AND enrolled_count > 0", slotID).
			UpdateColumn("enrolled_count", gorm.Expr("enrolled_count - ?", 1)).Error; err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.slots.GetSlot(ctx, slotID)
}

// ListEnrollments returns the slots the principal holds a seat in.
func (l *Ledger) ListEnrollments(ctx context.Context, principalID string) ([]models.Slot, error) {
	return l.slots.ListEnrolledSlots(ctx, principalID)
}

// RegisterForEvent adds a public attendee to an approved event and sends a
// confirmation to the attendee.
func (l *Ledger) RegisterForEvent(ctx context.Context, eventID string, a Attendee) (*models.EventRegistration, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = normalizeEmail(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	if err := validate.Struct(a); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(lockset.EventKey(eventID))
	defer unlock()

	var (
		event models.Event
		reg   models.EventRegistration
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("event", eventID)
			}
			return fmt.Errorf("load event: %w", err)
		}
		if event.Status != models.EventApproved {
			return apperr.NotApproved(string(event.Status)).With("event_id", eventID)
		}
		if event.IsFull() {
			return apperr.CapacityExceeded(event.Capacity).With("event_id", eventID)
		}

		var taken int64
		if err := tx.Model(&models.EventRegistration{}).
			Where("event_id = ? AND email = ?", eventID, a.Email).
			Count(&taken).Error; err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if taken > 0 {
			return apperr.DuplicateEmail(a.Email).With("event_id", eventID)
		}

		res := tx.Model(&models.Event{}).
			Where("id = ? AND status = ? AND registered_count < capacity", eventID, models.EventApproved).
			UpdateColumn("registered_count", gorm.Expr("registered_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("take seat: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.CapacityExceeded(event.Capacity).With("event_id", eventID)
		}

		reg = models.EventRegistration{
			ID:           uuid.New().String(),
			EventID:      eventID,
			Name:         a.Name,
			Email:        a.Email,
			Phone:        a.Phone,
			RegisteredAt: l.events.Now().UTC(),
		}
		if err := tx.Create(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.DuplicateEmail(a.Email).With("event_id", eventID)
			}
			return fmt.Errorf("insert registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.notify.Dispatch(reg.Email, "Registration confirmed",
		fmt.Sprintf("Hi %s, you are registered for %q on %s %s-%s at %s.",
			reg.Name, event.Name, event.Date, event.StartTime, event.EndTime, event.Venue))
	return &reg, nil
}

// CancelRegistration removes an attendee. Admins and the submitter may cancel;
// cancelling an unknown email is a no-op.
func (l *Ledger) CancelRegistration(ctx context.Context, eventID, email string, actor auth.Principal) error {
	email = normalizeEmail(email)

	unlock := l.locks.Lock(lockset.EventKey(eventID))
	defer unlock()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := database.ForUpdate(tx).First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("event", eventID)
			}
			return fmt.Errorf("load event: %w", err)
		}
		if err := policy.Check(policy.EventCancelRegistration, events.SubjectFor(actor, &event)); err != nil {
			return err
		}

		res := tx.Where("event_id = ? AND email = ?", eventID, email).Delete(&models.EventRegistration{})
		if res.Error != nil {
			return fmt.Errorf("delete registration: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Event{}).
			Where("id = ? AND registered_count > 0", eventID).
			UpdateColumn("registered_count", gorm.Expr("registered_count - ?", 1)).Error; err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		return nil
	})
}

// ListRegistrations returns an event's attendees in arrival order.
func (l *Ledger) ListRegistrations(ctx context.Context, eventID string, actor auth.Principal) ([]models.EventRegistration, error) {
	event, err := l.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.EventViewRegistrations, events.SubjectFor(actor, event)); err != nil {
		return nil, err
	}
	if event.Registrations == nil {
		return []models.EventRegistration{}, nil
	}
	return event.Registrations, nil
}

func alreadyEnrolled(slotID, principalID string) error {
	return apperr.Duplicate("already enrolled in this slot").
		With("slot_id", slotID).
		With("principal_id", principalID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
