package events

import (
	"context"
	"fmt"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/lockset"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/policy"
	"gorm.io/gorm"
)

// transitions lists the allowed status moves. Approved and rejected are terminal.
var transitions = map[models.EventStatus][]models.EventStatus{
	models.EventPending: {models.EventApproved, models.EventRejected},
}

func CanTransition(from, to models.EventStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (c *Catalog) Approve(ctx context.Context, eventID string, admin auth.Principal) (*models.Event, error) {
	return c.moderate(ctx, eventID, admin, models.EventApproved)
}

func (c *Catalog) Reject(ctx context.Context, eventID string, admin auth.Principal) (*models.Event, error) {
	return c.moderate(ctx, eventID, admin, models.EventRejected)
}

// moderate commits the status change first and only then schedules the
// submitter notification, so a failed delivery cannot undo the decision.
func (c *Catalog) moderate(ctx context.Context, eventID string, admin auth.Principal, to models.EventStatus) (*models.Event, error) {
	if err := policy.Check(policy.EventModerate, policy.Subject{Role: admin.Role}); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(lockset.EventKey(eventID))
	defer unlock()

	var event models.Event
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadForUpdate(tx, eventID, &event); err != nil {
			return err
		}
		if !CanTransition(event.Status, to) {
			return apperr.InvalidTransition(string(event.Status), string(to))
		}

		now := c.now()
		res := tx.Model(&models.Event{}).
			Where("id = ? AND status = ?", eventID, event.Status).
			Updates(map[string]any{
				"status":       to,
				"approved_by":  admin.ID,
				"moderated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition(string(event.Status), string(to))
		}

		event.Status = to
		event.ApprovedBy = admin.ID
		event.ModeratedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	subject, body := decisionMessage(&event)
	c.notify.Dispatch(event.SubmitterEmail, subject, body)

	return &event, nil
}

func decisionMessage(e *models.Event) (subject, body string) {
	switch e.Status {
	case models.EventApproved:
		return "Your event was approved",
			fmt.Sprintf("%q on %s %s-%s at %s is now open for registration.", e.Name, e.Date, e.StartTime, e.EndTime, e.Venue)
	default:
		return "Your event was not approved",
			fmt.Sprintf("%q on %s at %s was rejected by the club admins.", e.Name, e.Date, e.Venue)
	}
}
