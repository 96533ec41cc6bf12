package models

import "gorm.io/gorm"

// CreateDefaultSendingConfig seeds the singleton sending config row so the
// schedulers have a gate to consult on first boot
func CreateDefaultSendingConfig(db *gorm.DB) error {
	var count int64
	if err := db.Model(&SendingConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Create(&SendingConfig{
		DailyLimit:      500,
		IntervalSeconds: 30,
		Enabled:         true,
	}).Error
}
