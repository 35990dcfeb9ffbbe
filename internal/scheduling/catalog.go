// Package scheduling stores coach-run training slots and keeps venue bookings
// free of overlaps.
//
// Every write that can change the set of slots at a venue on a day holds the
// venue/day lock (in-process, plus a transaction-scoped advisory lock on
// postgres) across the conflict scan and the write, so the scan always sees
// the latest committed bookings.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/config"
	"github.com/gdg-garage/club-booking-api/internal/database"
	"github.com/gdg-garage/club-booking-api/internal/lockset"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/policy"
	"github.com/gdg-garage/club-booking-api/internal/timerange"
	"github.com/gdg-garage/club-booking-api/internal/validate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SlotDetails is the caller-supplied part of a slot.
type SlotDetails struct {
	Title     string `json:"title" validate:"required,max=200"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Venue     string `json:"venue" validate:"required,max=200"`
	// Zero means the configured default.
	Capacity int `json:"capacity" validate:"gte=0"`
}

// Filter narrows slot listings. Empty fields match everything.
type Filter struct {
	Venue string
	Date  string
}

type Catalog struct {
	db     *gorm.DB
	locks  *lockset.Set
	limits config.Limits
}

func NewCatalog(db *gorm.DB, locks *lockset.Set, limits config.Limits) *Catalog {
	if locks == nil {
		locks = lockset.New()
	}
	return &Catalog{db: db, locks: locks, limits: limits}
}

// slotInput is SlotDetails after validation and normalization.
type slotInput struct {
	title    string
	date     string
	venue    string
	rng      timerange.Range
	capacity int
}

func (c *Catalog) normalize(d SlotDetails) (slotInput, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Venue = strings.TrimSpace(d.Venue)
	if err := validate.Struct(d); err != nil {
		return slotInput{}, err
	}

	rng, err := timerange.Parse(d.StartTime, d.EndTime)
	if err != nil {
		return slotInput{}, apperr.Validation("%v", err)
	}
	if !rng.Valid() {
		return slotInput{}, apperr.Validation("start_time must be before end_time").
			With("start_time", d.StartTime).With("end_time", d.EndTime)
	}

	capacity := d.Capacity
	if capacity == 0 {
		capacity = c.limits.SlotDefaultCapacity
	}
	if capacity < c.limits.MinCapacity || capacity > c.limits.MaxCapacity {
		return slotInput{}, apperr.Validation("capacity must be between %d and %d", c.limits.MinCapacity, c.limits.MaxCapacity).
			With("capacity", fmt.Sprint(capacity))
	}

	return slotInput{
		title:    d.Title,
		date:     d.Date,
		venue:    d.Venue,
		rng:      rng,
		capacity: capacity,
	}, nil
}

func (c *Catalog) CreateSlot(ctx context.Context, owner auth.Principal, details SlotDetails) (*models.Slot, error) {
	if err := policy.Check(policy.SlotCreate, policy.Subject{Role: owner.Role}); err != nil {
		return nil, err
	}
	in, err := c.normalize(details)
	if err != nil {
		return nil, err
	}

	scope := lockset.VenueKey(in.venue, in.date)
	unlock := c.locks.Lock(scope)
	defer unlock()

	slot := models.Slot{
		ID:        uuid.New().String(),
		OwnerID:   owner.ID,
		Title:     in.title,
		Date:      in.date,
		StartTime: timerange.FormatClock(in.rng.Start),
		EndTime:   timerange.FormatClock(in.rng.End),
		Venue:     in.venue,
		Capacity:  in.capacity,
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.LockScope(tx, scope); err != nil {
			return err
		}
		if err := checkOverlap(tx, in, ""); err != nil {
			return err
		}
		if err := tx.Create(&slot).Error; err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slot.EnrolledPrincipalIDs = []string{}
	return &slot, nil
}

func (c *Catalog) UpdateSlot(ctx context.Context, slotID string, owner auth.Principal, details SlotDetails) (*models.Slot, error) {
	in, err := c.normalize(details)
	if err != nil {
		return nil, err
	}

	// The slot may move to another venue or day, so both the old and the new
	// venue/day scopes are held. If another update moved it between the
	// unlocked read and acquiring the locks, start over.
	for attempt := 0; attempt < 3; attempt++ {
		current, err := c.GetSlot(ctx, slotID)
		if err != nil {
			return nil, err
		}
		oldScope := lockset.VenueKey(current.Venue, current.Date)
		newScope := lockset.VenueKey(in.venue, in.date)

		unlock := c.locks.Lock(lockset.SlotKey(slotID), oldScope, newScope)
		updated, moved, err := c.updateLocked(ctx, slotID, owner, in, current.Venue, current.Date)
		unlock()
		if moved {
			continue
		}
		return updated, err
	}
	return nil, fmt.Errorf("update slot %s: gave up after concurrent moves", slotID)
}

func (c *Catalog) updateLocked(ctx context.Context, slotID string, owner auth.Principal, in slotInput, lockedVenue, lockedDate string) (*models.Slot, bool, error) {
	var slot models.Slot
	moved := false

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("slot", slotID)
			}
			return fmt.Errorf("load slot: %w", err)
		}
		if slot.Venue != lockedVenue || slot.Date != lockedDate {
			moved = true
			return nil
		}

		sub := policy.Subject{Role: owner.Role, IsOwner: slot.OwnerID == owner.ID}
		if err := policy.Check(policy.SlotUpdate, sub); err != nil {
			return err
		}
		if in.capacity < slot.EnrolledCount {
			return apperr.CapacityTooLow(in.capacity, slot.EnrolledCount)
		}

		for _, scope := range []string{lockset.VenueKey(slot.Venue, slot.Date), lockset.VenueKey(in.venue, in.date)} {
			if err := database.LockScope(tx, scope); err != nil {
				return err
			}
		}
		if err := checkOverlap(tx, in, slot.ID); err != nil {
			return err
		}

		slot.Title = in.title
		slot.Date = in.date
		slot.Venue = in.venue
		slot.StartTime = timerange.FormatClock(in.rng.Start)
		slot.EndTime = timerange.FormatClock(in.rng.End)
		slot.Capacity = in.capacity
		if err := tx.Save(&slot).Error; err != nil {
			return fmt.Errorf("save slot: %w", err)
		}
		return attachEnrollments(tx, []*models.Slot{&slot})
	})
	if err != nil || moved {
		return nil, moved, err
	}
	return &slot, false, nil
}

// DeleteSlot removes the slot and its enrollments. Enrolled principals are not notified.
func (c *Catalog) DeleteSlot(ctx context.Context, slotID string, owner auth.Principal) error {
	unlock := c.locks.Lock(lockset.SlotKey(slotID))
	defer unlock()

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.Slot
		if err := database.ForUpdate(tx).First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("slot", slotID)
			}
			return fmt.Errorf("load slot: %w", err)
		}

		sub := policy.Subject{Role: owner.Role, IsOwner: slot.OwnerID == owner.ID}
		if err := policy.Check(policy.SlotDelete, sub); err != nil {
			return err
		}

		if err := tx.Where("slot_id = ?", slotID).Delete(&models.SlotEnrollment{}).Error; err != nil {
			return fmt.Errorf("delete enrollments: %w", err)
		}
		if err := tx.Delete(&slot).Error; err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		return nil
	})
}

func (c *Catalog) GetSlot(ctx context.Context, slotID string) (*models.Slot, error) {
	var slot models.Slot
	db := c.db.WithContext(ctx)
	if err := db.First(&slot, "id = ?", slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("slot", slotID)
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if err := attachEnrollments(db, []*models.Slot{&slot}); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListSlots returns slots ordered by date, start time and venue.
func (c *Catalog) ListSlots(ctx context.Context, f Filter) ([]models.Slot, error) {
	q := c.db.WithContext(ctx).Model(&models.Slot{})
	if f.Venue != "" {
		q = q.Where("venue = ?", strings.TrimSpace(f.Venue))
	}
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	return c.list(ctx, q)
}

func (c *Catalog) ListOwnSlots(ctx context.Context, ownerID string) ([]models.Slot, error) {
	return c.list(ctx, c.db.WithContext(ctx).Model(&models.Slot{}).Where("owner_id = ?", ownerID))
}

// ListEnrolledSlots returns the slots a principal holds a seat in.
func (c *Catalog) ListEnrolledSlots(ctx context.Context, principalID string) ([]models.Slot, error) {
	sub := c.db.WithContext(ctx).Model(&models.SlotEnrollment{}).
		Select("slot_id").
		Where("principal_id = ?", principalID)
	return c.list(ctx, c.db.WithContext(ctx).Model(&models.Slot{}).Where("id IN (?)", sub))
}

func (c *Catalog) list(ctx context.Context, q *gorm.DB) ([]models.Slot, error) {
	var slots []models.Slot
	if err := q.Order("date asc, start_time asc, venue asc").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	ptrs := make([]*models.Slot, len(slots))
	for i := range slots {
		ptrs[i] = &slots[i]
	}
	if err := attachEnrollments(c.db.WithContext(ctx), ptrs); err != nil {
		return nil, err
	}
	return slots, nil
}

// attachEnrollments fills EnrolledPrincipalIDs in enrollment order.
func attachEnrollments(db *gorm.DB, slots []*models.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	ids := make([]string, 0, len(slots))
	byID := make(map[string]*models.Slot, len(slots))
	for _, s := range slots {
		s.EnrolledPrincipalIDs = []string{}
		ids = append(ids, s.ID)
		byID[s.ID] = s
	}

	var enrollments []models.SlotEnrollment
	if err := db.Where("slot_id IN ?", ids).Order("created_at asc").Find(&enrollments).Error; err != nil {
		return fmt.Errorf("load enrollments: %w", err)
	}
	for _, e := range enrollments {
		if s, ok := byID[e.SlotID]; ok {
			s.EnrolledPrincipalIDs = append(s.EnrolledPrincipalIDs, e.PrincipalID)
		}
	}
	return nil
}
