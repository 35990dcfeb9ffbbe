// Package events stores member-submitted public events and runs their moderation.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/config"
	"github.com/gdg-garage/club-booking-api/internal/database"
	"github.com/gdg-garage/club-booking-api/internal/lockset"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/notifier"
	"github.com/gdg-garage/club-booking-api/internal/policy"
	"github.com/gdg-garage/club-booking-api/internal/timerange"
	"github.com/gdg-garage/club-booking-api/internal/validate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventDetails struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Venue           string   `json:"venue" validate:"required,max=200"`
	VenueFacilities []string `json:"venue_facilities" validate:"omitempty,dive,max=100"`
	RequestedItems  []string `json:"requested_items" validate:"omitempty,dive,max=100"`
	Date            string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string   `json:"start_time" validate:"required"`
	EndTime         string   `json:"end_time" validate:"required"`
	Capacity        int      `json:"capacity" validate:"required"`
}

// EventPatch updates only the fields that are set. Status is not patchable.
type EventPatch struct {
	Name            *string
	Venue           *string
	VenueFacilities *[]string
	RequestedItems  *[]string
	Date            *string
	StartTime       *string
	EndTime         *string
	Capacity        *int
}

// Filter narrows event listings. Query is a case-insensitive substring of the name.
type Filter struct {
	Query string
}

type Catalog struct {
	db     *gorm.DB
	locks  *lockset.Set
	limits config.Limits
	notify *notifier.Dispatcher
	now    func() time.Time
}

type Option func(*Catalog)

// WithClock replaces time.Now, which anchors the submission date window.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

func NewCatalog(db *gorm.DB, locks *lockset.Set, limits config.Limits, notify *notifier.Dispatcher, opts ...Option) *Catalog {
	if locks == nil {
		locks = lockset.New()
	}
	c := &Catalog{db: db, locks: locks, limits: limits, notify: notify, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now is the catalog clock.
func (c *Catalog) Now() time.Time { return c.now() }

func (c *Catalog) validateDetails(d *EventDetails, checkWindow bool) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Venue = strings.TrimSpace(d.Venue)
	if err := validate.Struct(d); err != nil {
		return err
	}

	rng, err := timerange.Parse(d.StartTime, d.EndTime)
	if err != nil {
		return apperr.Validation("%v", err)
	}
	if !rng.Valid() {
		return apperr.Validation("end_time must be after start_time").
			With("start_time", d.StartTime).With("end_time", d.EndTime)
	}
	d.StartTime = timerange.FormatClock(rng.Start)
	d.EndTime = timerange.FormatClock(rng.End)

	if d.Capacity < c.limits.MinCapacity || d.Capacity > c.limits.MaxCapacity {
		return apperr.Validation("capacity must be between %d and %d", c.limits.MinCapacity, c.limits.MaxCapacity).
			With("capacity", fmt.Sprint(d.Capacity))
	}

	if checkWindow {
		now := c.now()
		date, err := timerange.ParseDate(d.Date, now.Location())
		if err != nil {
			return apperr.Validation("%v", err)
		}
		if !timerange.WithinWindow(date, now, c.limits.EventWindowMonths) {
			return apperr.Validation("date must be between today and %d months ahead", c.limits.EventWindowMonths).
				With("date", d.Date)
		}
	}
	return nil
}

// SubmitEvent stores a new event as pending.
func (c *Catalog) SubmitEvent(ctx context.Context, submitter auth.Principal, d EventDetails) (*models.Event, error) {
	if err := policy.Check(policy.EventSubmit, policy.Subject{Role: submitter.Role}); err != nil {
		return nil, err
	}
	if err := c.validateDetails(&d, true); err != nil {
		return nil, err
	}

	event := models.Event{
		ID:              uuid.New().String(),
		Name:            d.Name,
		Venue:           d.Venue,
		VenueFacilities: nonNil(d.VenueFacilities),
		RequestedItems:  nonNil(d.RequestedItems),
		Date:            d.Date,
		StartTime:       d.StartTime,
		EndTime:         d.EndTime,
		Capacity:        d.Capacity,
		Status:          models.EventPending,
		SubmittedBy:     submitter.ID,
		SubmitterEmail:  submitter.Email,
	}
	if err := c.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &event, nil
}

// GetEvent returns an event with its registrations in arrival order.
func (c *Catalog) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := c.db.WithContext(ctx).
		Preload("Registrations", func(db *gorm.DB) *gorm.DB {
			return db.Order("registered_at asc")
		}).
		First(&event, "id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event", eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// GetVisibleEvent returns an event if the viewer may see it: approved events
// are public, anything else needs the submitter or an admin. Hidden events
// are reported as not found.
func (c *Catalog) GetVisibleEvent(ctx context.Context, eventID string, viewer *auth.Principal) (*models.Event, error) {
	event, err := c.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventApproved {
		return event, nil
	}
	if viewer != nil && policy.Allowed(policy.EventView, subjectFor(*viewer, event)) {
		return event, nil
	}
	return nil, apperr.NotFound("event", eventID)
}

func (c *Catalog) ListApproved(ctx context.Context, f Filter) ([]models.Event, error) {
	return c.ListByStatus(ctx, models.EventApproved, f)
}

// ListByStatus lists events by date. An empty status lists every event.
func (c *Catalog) ListByStatus(ctx context.Context, status models.EventStatus, f Filter) ([]models.Event, error) {
	q := c.db.WithContext(ctx).Model(&models.Event{})
	if status != "" {
		if !status.Valid() {
			return nil, apperr.Validation("unknown status %q", status).With("status", string(status))
		}
		q = q.Where("status = ?", status)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	var events []models.Event
	if err := q.Order("date asc, start_time asc").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// UpdateEvent applies a patch. Admins may patch at any status, the submitter
// only while pending. Capacity can never drop below the registrations held.
func (c *Catalog) UpdateEvent(ctx context.Context, eventID string, actor auth.Principal, patch EventPatch) (*models.Event, error) {
	unlock := c.locks.Lock(lockset.EventKey(eventID))
	defer unlock()

	var event models.Event
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadForUpdate(tx, eventID, &event); err != nil {
			return err
		}
		if err := policy.Check(policy.EventUpdate, subjectFor(actor, &event)); err != nil {
			return err
		}

		d := detailsOf(&event)
		patch.apply(&d)
		dateChanged := d.Date != event.Date
		if err := c.validateDetails(&d, dateChanged); err != nil {
			return err
		}
		if d.Capacity < event.RegisteredCount {
			return apperr.CapacityTooLow(d.Capacity, event.RegisteredCount)
		}

		event.Name = d.Name
		event.Venue = d.Venue
		event.VenueFacilities = nonNil(d.VenueFacilities)
		event.RequestedItems = nonNil(d.RequestedItems)
		event.Date = d.Date
		event.StartTime = d.StartTime
		event.EndTime = d.EndTime
		event.Capacity = d.Capacity

		// Guard the capacity write against the stored count as well.
		res := tx.Model(&event).
			Where("registered_count <= ?", event.Capacity).
			Select("name", "venue", "venue_facilities", "requested_items", "date", "start_time", "end_time", "capacity", "updated_at").
			Updates(&event)
		if res.Error != nil {
			return fmt.Errorf("update event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.CapacityTooLow(event.Capacity, event.RegisteredCount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.GetEvent(ctx, eventID)
}

// DeleteEvent removes an event and its registrations.
func (c *Catalog) DeleteEvent(ctx context.Context, eventID string, actor auth.Principal) error {
	unlock := c.locks.Lock(lockset.EventKey(eventID))
	defer unlock()

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := loadForUpdate(tx, eventID, &event); err != nil {
			return err
		}
		if err := policy.Check(policy.EventDelete, subjectFor(actor, &event)); err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", eventID).Delete(&models.EventRegistration{}).Error; err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		if err := tx.Delete(&event).Error; err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

func loadForUpdate(tx *gorm.DB, eventID string, event *models.Event) error {
	if err := database.ForUpdate(tx).First(event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("event", eventID)
		}
		return fmt.Errorf("load event: %w", err)
	}
	return nil
}

// SubjectFor describes actor relative to event for policy checks.
func SubjectFor(actor auth.Principal, event *models.Event) policy.Subject {
	return subjectFor(actor, event)
}

func subjectFor(actor auth.Principal, event *models.Event) policy.Subject {
	return policy.Subject{
		Role:    actor.Role,
		IsOwner: actor.ID != "" && actor.ID == event.SubmittedBy,
		Status:  string(event.Status),
	}
}

func detailsOf(e *models.Event) EventDetails {
	return EventDetails{
		Name:            e.Name,
		Venue:           e.Venue,
		VenueFacilities: e.VenueFacilities,
		RequestedItems:  e.RequestedItems,
		Date:            e.Date,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		Capacity:        e.Capacity,
	}
}

func (p EventPatch) apply(d *EventDetails) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Venue != nil {
		d.Venue = *p.Venue
	}
	if p.VenueFacilities != nil {
		d.VenueFacilities = *p.VenueFacilities
	}
	if p.RequestedItems != nil {
		d.RequestedItems = *p.RequestedItems
	}
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.StartTime != nil {
		d.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		d.EndTime = *p.EndTime
	}
	if p.Capacity != nil {
		d.Capacity = *p.Capacity
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
