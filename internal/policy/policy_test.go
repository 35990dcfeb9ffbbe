package policy

import (
	"testing"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		sub    Subject
		want   bool
	}{
		{"member cannot create slot", SlotCreate, Subject{Role: RoleMember}, false},
		{"coach creates slot", SlotCreate, Subject{Role: RoleCoach}, true},
		{"admin creates slot", SlotCreate, Subject{Role: RoleAdmin}, true},
		{"owner updates slot", SlotUpdate, Subject{Role: RoleCoach, IsOwner: true}, true},
		{"admin is not slot owner", SlotUpdate, Subject{Role: RoleAdmin}, false},
		{"other coach deletes slot", SlotDelete, Subject{Role: RoleCoach}, false},
		{"member enrolls", SlotEnroll, Subject{Role: RoleMember}, true},
		{"member submits event", EventSubmit, Subject{Role: RoleMember}, true},
		{"submitter edits pending", EventUpdate, Subject{Role: RoleMember, IsOwner: true, Status: "pending"}, true},
		{"submitter edits approved", EventUpdate, Subject{Role: RoleMember, IsOwner: true, Status: "approved"}, false},
		{"admin edits approved", EventUpdate, Subject{Role: RoleAdmin, Status: "approved"}, true},
		{"stranger edits pending", EventUpdate, Subject{Role: RoleMember, Status: "pending"}, false},
		{"submitter deletes rejected", EventDelete, Subject{Role: RoleMember, IsOwner: true, Status: "rejected"}, false},
		{"admin deletes rejected", EventDelete, Subject{Role: RoleAdmin, Status: "rejected"}, true},
		{"coach moderates", EventModerate, Subject{Role: RoleCoach}, false},
		{"admin moderates", EventModerate, Subject{Role: RoleAdmin, Status: "pending"}, true},
		{"submitter views registrations", EventViewRegistrations, Subject{Role: RoleMember, IsOwner: true, Status: "approved"}, true},
		{"stranger views registrations", EventViewRegistrations, Subject{Role: RoleCoach, Status: "approved"}, false},
		{"unknown role", SlotEnroll, Subject{Role: "guest"}, false},
		{"unspecified action", ActionUnspecified, Subject{Role: RoleAdmin}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.action, tc.sub); got != tc.want {
				t.Errorf("Allowed(%s, %+v) = %v, want %v", tc.action, tc.sub, got, tc.want)
			}
		})
	}
}

func TestCheckReturnsAuthorizationError(t *testing.T) {
	err := Check(EventModerate, Subject{Role: RoleMember})
	if !apperr.Is(err, apperr.CodeAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := Check(EventModerate, Subject{Role: RoleAdmin}); err != nil {
		t.Fatalf("expected admin to moderate, got %v", err)
	}
}
