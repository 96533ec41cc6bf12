package utils

import (
	"time"

	"leadmailer/models"

	"gorm.io/gorm"
)

// LaunchTransmission rebuilds the recipient queue, resets the counters and
// computes the initial scheduling state: an empty queue completes the
// transmission immediately, a future scheduled time parks it as scheduled,
// anything else starts processing right away.
func LaunchTransmission(db *gorm.DB, t *models.Transmission) error {
	total, err := BuildRecipientQueue(db, t)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"total_recipients": total,
		"sent_count":       0,
		"failed_count":     0,
		"enabled":          true,
		"last_error":       nil,
		"completed_at":     nil,
	}

	switch {
	case total == 0:
		updates["status"] = models.StatusCompleted
		updates["started_at"] = now
		updates["completed_at"] = now
		updates["next_run_at"] = nil
	case t.Mode == models.ModeScheduled && t.ScheduledAt != nil && t.ScheduledAt.After(now):
		updates["status"] = models.StatusScheduled
		updates["started_at"] = nil
		updates["next_run_at"] = *t.ScheduledAt
	default:
		updates["status"] = models.StatusProcessing
		updates["started_at"] = nil
		updates["next_run_at"] = now
	}

	if err := db.Model(t).Updates(updates).Error; err != nil {
		return err
	}
	return db.First(t, t.ID).Error
}

// DisableTransmission pauses an in-flight transmission. Terminal statuses are
// left untouched; the enabled flag is always cleared.
func DisableTransmission(db *gorm.DB, t *models.Transmission) error {
	updates := map[string]interface{}{"enabled": false}

	if t.Status == models.StatusProcessing || t.Status == models.StatusScheduled {
		updates["status"] = models.StatusPaused
		updates["next_run_at"] = nil
	}

	if err := db.Model(t).Updates(updates).Error; err != nil {
		return err
	}
	return db.First(t, t.ID).Error
}

// EnableTransmission resumes a paused transmission based on what is left in
// its queue: nothing pending completes it, a still-future scheduled time
// re-parks it, otherwise it resumes processing immediately.
func EnableTransmission(db *gorm.DB, t *models.Transmission) error {
	updates := map[string]interface{}{"enabled": true}

	if t.Status == models.StatusPaused {
		var pending int64
		err := db.Model(&models.TransmissionRecipient{}).
			Where("transmission_id = ? AND status = ?", t.ID, models.RecipientPending).
			Count(&pending).Error
		if err != nil {
			return err
		}

		now := time.Now()
		switch {
		case pending == 0:
			updates["status"] = models.StatusCompleted
			updates["completed_at"] = now
			updates["next_run_at"] = nil
		case t.Mode == models.ModeScheduled && t.ScheduledAt != nil && t.ScheduledAt.After(now):
			updates["status"] = models.StatusScheduled
			updates["next_run_at"] = *t.ScheduledAt
		default:
			updates["status"] = models.StatusProcessing
			updates["next_run_at"] = now
		}
	}

	if err := db.Model(t).Updates(updates).Error; err != nil {
		return err
	}
	return db.First(t, t.ID).Error
}
