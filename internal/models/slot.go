package models

import (
	"time"
)

type Slot struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID       string `gorm:"index;not null" json:"owner_id"`
	Title         string `json:"title"`
	Date          string `gorm:"size:10;not null;index:idx_slot_venue_date" json:"date"`
	StartTime     string `gorm:"size:5;not null" json:"start_time"`
	EndTime       string `gorm:"size:5;not null" json:"end_time"`
	Venue         string `gorm:"not null;index:idx_slot_venue_date" json:"venue"`
	Capacity      int    `gorm:"not null" json:"capacity"`
	EnrolledCount int    `gorm:"not null;default:0" json:"enrolled_count"`

	// Filled from SlotEnrollment rows when a slot is read back.
	EnrolledPrincipalIDs []string `gorm:"-" json:"enrolled_principal_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotEnrollment is one principal holding a seat in a slot.
type SlotEnrollment struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	SlotID      string `gorm:"size:36;not null;uniqueIndex:idx_slot_principal" json:"slot_id"`
	PrincipalID string `gorm:"not null;uniqueIndex:idx_slot_principal;index" json:"principal_id"`
	// Contact address for session reminders.
	PrincipalEmail string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Remaining returns the number of free seats.
func (s *Slot) Remaining() int {
	return s.Capacity - s.EnrolledCount
}
