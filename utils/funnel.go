package utils

import (
	"time"

	"leadmailer/models"

	"gorm.io/gorm"
)

// NextActiveTemplate returns the active template with the lowest position
// strictly greater than afterPosition, or nil when the funnel has no further
// step. Pass -1 for the first step.
func NextActiveTemplate(db *gorm.DB, funnelID uint, afterPosition int) (*models.FunnelTemplate, error) {
	var tmpl models.FunnelTemplate
	err := db.Where("funnel_id = ? AND active = ? AND position > ?", funnelID, true, afterPosition).
		Order("position ASC").
		First(&tmpl).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

// EnrollLeadInFunnel creates (or revives) the progress row pointing a lead at
// the funnel's first active template. Re-enrolling an existing active lead is
// a no-op.
func EnrollLeadInFunnel(db *gorm.DB, funnel *models.Funnel, lead *models.Lead, tzMode bool) (*models.FunnelLeadProgress, error) {
	first, err := NextActiveTemplate(db, funnel.ID, -1)
	if err != nil {
		return nil, err
	}

	var progress models.FunnelLeadProgress
	err = db.Where("funnel_id = ? AND lead_id = ?", funnel.ID, lead.ID).First(&progress).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err == nil && progress.Status == models.ProgressActive {
		return &progress, nil
	}

	now := time.Now()
	progress.FunnelID = funnel.ID
	progress.LeadID = lead.ID
	progress.CurrentTemplateID = nil
	progress.Status = models.ProgressActive
	if first != nil {
		progress.NextTemplateID = &first.ID
		progress.NextSendAt = Pointer(NextSendTime(now, first.DelayValue, first.DelayUnit, first.SendTime, lead.Timezone, tzMode))
	} else {
		progress.NextTemplateID = nil
		progress.NextSendAt = nil
		progress.Status = models.ProgressCompleted
	}

	if err := db.Save(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}
