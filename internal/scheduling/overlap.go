package scheduling

import (
	"fmt"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/timerange"
	"gorm.io/gorm"
)

// checkOverlap fails with a conflict naming the first slot at the same venue
// and date whose time range intersects in.rng. excludeID is the slot being
// updated, which never conflicts with itself.
func checkOverlap(tx *gorm.DB, in slotInput, excludeID string) error {
	var sameDay []models.Slot
	q := tx.Where("venue = ? AND date = ?", in.venue, in.date)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Order("start_time asc").Find(&sameDay).Error; err != nil {
		return fmt.Errorf("scan venue bookings: %w", err)
	}

	for _, existing := range sameDay {
		rng, err := timerange.Parse(existing.StartTime, existing.EndTime)
		if err != nil {
			return fmt.Errorf("stored slot %s has bad times: %w", existing.ID, err)
		}
		if rng.Overlaps(in.rng) {
			return apperr.Conflict(existing.ID).
				With("venue", existing.Venue).
				With("date", existing.Date).
				With("conflicting_range", existing.StartTime+"-"+existing.EndTime)
		}
	}
	return nil
}
