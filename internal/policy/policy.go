// Package policy holds the role, ownership and status rules for every booking operation.
//
// Rules are evaluated once per request from a Subject describing who is acting
// and on what, so the catalogs never branch on roles themselves.
package policy

import (
	"fmt"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
)

type Role string

const (
	RoleMember Role = "member"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleCoach, RoleAdmin:
		return true
	}
	return false
}

type Action int

const (
	ActionUnspecified Action = iota
	// Slot actions.
	SlotCreate
	SlotUpdate
	SlotDelete
	SlotEnroll
	// Event actions.
	EventSubmit
	EventUpdate
	EventDelete
	EventModerate
	EventViewRegistrations
	EventCancelRegistration
	// EventView covers non-public reads (pending or rejected events).
	EventView
)

var actionNames = map[Action]string{
	SlotCreate:              "slot.create",
	SlotUpdate:              "slot.update",
	SlotDelete:              "slot.delete",
	SlotEnroll:              "slot.enroll",
	EventSubmit:             "event.submit",
	EventUpdate:             "event.update",
	EventDelete:             "event.delete",
	EventModerate:           "event.moderate",
	EventViewRegistrations:  "event.registrations.view",
	EventCancelRegistration: "event.registrations.cancel",
	EventView:               "event.view",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Subject describes the acting principal relative to the target record.
// Status is the event moderation status and is empty for slots.
type Subject struct {
	Role    Role
	IsOwner bool
	Status  string
}

const statusPending = "pending"

type rule func(Subject) bool

func anyone(Subject) bool { return true }

func admin(s Subject) bool { return s.Role == RoleAdmin }

func owner(s Subject) bool { return s.IsOwner }

func staff(s Subject) bool { return s.Role == RoleCoach || s.Role == RoleAdmin }

func adminOrOwner(s Subject) bool { return admin(s) || owner(s) }

func adminOrPendingOwner(s Subject) bool {
	return admin(s) || (owner(s) && s.Status == statusPending)
}

var rules = map[Action]rule{
	SlotCreate:              staff,
	SlotUpdate:              owner,
	SlotDelete:              owner,
	SlotEnroll:              anyone,
	EventSubmit:             anyone,
	EventUpdate:             adminOrPendingOwner,
	EventDelete:             adminOrPendingOwner,
	EventModerate:           admin,
	EventViewRegistrations:  adminOrOwner,
	EventCancelRegistration: adminOrOwner,
	EventView:               adminOrOwner,
}

// Allowed reports whether the subject may perform the action.
func Allowed(action Action, s Subject) bool {
	if !s.Role.Valid() {
		return false
	}
	r, ok := rules[action]
	if !ok {
		return false
	}
	return r(s)
}

// Check is Allowed returning an authorization error naming the action.
func Check(action Action, s Subject) error {
	if Allowed(action, s) {
		return nil
	}
	return apperr.Newf(apperr.CodeAuthorization, "not allowed to %s", action).
		With("role", string(s.Role))
}
