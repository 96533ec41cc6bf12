package utils

import (
	"leadmailer/models"

	"gorm.io/gorm"
)

// EligibleLeadIDs returns the ids of leads matching the given filters, ordered
// by creation time per sendOrder with id as tie-break. Unsubscribed leads are
// excluded unconditionally.
func EligibleLeadIDs(db *gorm.DB, access models.AccessFilter, situation models.SituationFilter, sendOrder models.SendOrder) ([]uint, error) {
	q := db.Model(&models.Lead{}).Where("unsubscribed = ?", false)

	switch access {
	case models.AccessAccessed:
		q = q.Where("accessed_platform = ?", true)
	case models.AccessNotAccessed:
		q = q.Where("accessed_platform = ?", false)
	}

	if situation != models.SituationAll && situation != "" {
		q = q.Where("situation = ?", situation)
	}

	if sendOrder == models.OldestFirst {
		q = q.Order("created_at ASC, id ASC")
	} else {
		q = q.Order("created_at DESC, id DESC")
	}

	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// BuildRecipientQueue snapshots the eligible-lead set for a transmission into
// a fresh position-ordered queue. Prior rows for the transmission are wiped:
// the queue is disposable, never incrementally maintained. Returns the number
// of recipients.
func BuildRecipientQueue(db *gorm.DB, t *models.Transmission) (int, error) {
	ids, err := EligibleLeadIDs(db, t.AccessFilter, t.SituationFilter, t.SendOrder)
	if err != nil {
		return 0, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("transmission_id = ?", t.ID).
			Delete(&models.TransmissionRecipient{}).Error; err != nil {
			return err
		}

		if len(ids) == 0 {
			return nil
		}

		recipients := make([]models.TransmissionRecipient, 0, len(ids))
		for i, leadID := range ids {
			recipients = append(recipients, models.TransmissionRecipient{
				TransmissionID: t.ID,
				LeadID:         leadID,
				Position:       i + 1,
				Status:         models.RecipientPending,
			})
		}
		return tx.CreateInBatches(recipients, 500).Error
	})
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}
