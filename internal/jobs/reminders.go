// Package jobs holds periodic background work run by the server's cron scheduler.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/notifier"
	"github.com/gdg-garage/club-booking-api/internal/timerange"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DefaultWindow matches the default five minute schedule, so each session
// falls into exactly one run.
const DefaultWindow = 5 * time.Minute

// Reminders notifies enrolled principals of slots starting in
// [now+lead, now+lead+window).
type Reminders struct {
	db     *gorm.DB
	notify *notifier.Dispatcher
	lead   time.Duration
	window time.Duration
	now    func() time.Time
}

type Option func(*Reminders)

func WithWindow(d time.Duration) Option {
	return func(r *Reminders) { r.window = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reminders) { r.now = now }
}

func NewReminders(db *gorm.DB, notify *notifier.Dispatcher, lead time.Duration, opts ...Option) *Reminders {
	r := &Reminders{db: db, notify: notify, lead: lead, window: DefaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sends one round of reminders and returns how many were dispatched.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	now := r.now()
	from := now.Add(r.lead)
	to := from.Add(r.window)

	// The window can cross midnight, so both calendar days are scanned.
	days := []string{from.Format(timerange.DateLayout)}
	if d := to.Format(timerange.DateLayout); d != days[0] {
		days = append(days, d)
	}

	var slots []models.Slot
	if err := r.db.WithContext(ctx).Where("date IN ? AND enrolled_count > 0", days).Find(&slots).Error; err != nil {
		return 0, fmt.Errorf("load upcoming slots: %w", err)
	}

	sent := 0
	for _, slot := range slots {
		starts, ok := startOf(slot, now.Location())
		if !ok || starts.Before(from) || !starts.Before(to) {
			continue
		}

		var enrollments []models.SlotEnrollment
		if err := r.db.WithContext(ctx).Where("slot_id = ?", slot.ID).Find(&enrollments).Error; err != nil {
			return sent, fmt.Errorf("load enrollments for slot %s: %w", slot.ID, err)
		}

		subject := fmt.Sprintf("Reminder: %s starts at %s", slot.Title, slot.StartTime)
		body := fmt.Sprintf("Your session %q at %s on %s runs %s-%s.", slot.Title, slot.Venue, slot.Date, slot.StartTime, slot.EndTime)
		for _, e := range enrollments {
			if e.PrincipalEmail == "" {
				continue
			}
			r.notify.Dispatch(e.PrincipalEmail, subject, body)
			sent++
		}
	}
	return sent, nil
}

func startOf(slot models.Slot, loc *time.Location) (time.Time, bool) {
	date, err := timerange.ParseDate(slot.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	minutes, err := timerange.ParseClock(slot.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	return timerange.StartsAt(date, minutes), true
}

// Schedule registers the reminder run on c under the given cron spec.
func Schedule(c *cron.Cron, spec string, r *Reminders) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		n, err := r.Run(context.Background())
		if err != nil {
			log.Printf("Session reminder run failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Dispatched %d session reminders", n)
		}
	})
}
