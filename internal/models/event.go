package models

import (
	"time"
)

type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventApproved, EventRejected:
		return true
	}
	return false
}

type Event struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	Name            string      `gorm:"not null" json:"name"`
	Venue           string      `gorm:"not null" json:"venue"`
	VenueFacilities []string    `gorm:"serializer:json" json:"venue_facilities"`
	RequestedItems  []string    `gorm:"serializer:json" json:"requested_items"`
	Date            string      `gorm:"size:10;not null;index" json:"date"`
	StartTime       string      `gorm:"size:5;not null" json:"start_time"`
	EndTime         string      `gorm:"size:5;not null" json:"end_time"`
	Capacity        int         `gorm:"not null" json:"capacity"`
	RegisteredCount int         `gorm:"not null;default:0" json:"registered_count"`
	Status          EventStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	SubmittedBy     string      `gorm:"index;not null" json:"submitted_by"`
	SubmitterEmail  string      `json:"-"`
	ApprovedBy      string      `json:"approved_by,omitempty"`
	ModeratedAt     *time.Time  `json:"moderated_at,omitempty"`

	Registrations []EventRegistration `json:"registrations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventRegistration is one public attendee. Email is stored lower-cased.
type EventRegistration struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	EventID      string    `gorm:"size:36;not null;uniqueIndex:idx_event_email" json:"event_id"`
	Name         string    `json:"name"`
	Email        string    `gorm:"not null;uniqueIndex:idx_event_email" json:"email"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `gorm:"index" json:"registered_at"`
}

func (e *Event) IsFull() bool {
	return e.RegisteredCount >= e.Capacity
}
