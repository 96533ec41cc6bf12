package utils

import (
	"time"

	"leadmailer/models"

	"gorm.io/gorm"
)

// SendLimiter gates every outbound send against the shared SendingConfig row:
// a global daily cap plus a minimum inter-send interval. The counter lives in
// the database so concurrent scheduler processes share it.
type SendLimiter struct {
	DB *gorm.DB

	// RotationBypass lifts the global daily cap when multi-account rotation
	// spreads volume across identities; per-account limits still apply.
	RotationBypass bool
}

func NewSendLimiter(db *gorm.DB) *SendLimiter {
	return &SendLimiter{DB: db}
}

// CanSend reports whether a send is allowed right now. overrideSeconds raises
// (never lowers) the configured inter-send interval. A false return carries a
// human-readable reason; an error means the gate itself could not be
// consulted and the caller should abort the tick.
func (sl *SendLimiter) CanSend(overrideSeconds int) (bool, string, error) {
	cfg, err := sl.loadConfig()
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, "no sending config", nil
		}
		return false, "", err
	}

	if !cfg.Enabled {
		return false, "sending disabled", nil
	}

	if !sl.RotationBypass && cfg.EmailsSentToday >= cfg.DailyLimit {
		return false, "daily limit reached", nil
	}

	interval := cfg.IntervalSeconds
	if overrideSeconds > interval {
		interval = overrideSeconds
	}
	if interval > 0 && cfg.LastSentAt != nil {
		elapsed := time.Since(*cfg.LastSentAt)
		if elapsed < time.Duration(interval)*time.Second {
			return false, "interval not elapsed", nil
		}
	}

	return true, "", nil
}

// RecordSend bumps the shared daily counter with an atomic increment so
// concurrent processes never lose updates
func (sl *SendLimiter) RecordSend() error {
	return sl.DB.Model(&models.SendingConfig{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"emails_sent_today": gorm.Expr("emails_sent_today + ?", 1),
			"last_sent_at":      time.Now(),
		}).Error
}

// Config returns the current sending config after the lazy daily reset
func (sl *SendLimiter) Config() (*models.SendingConfig, error) {
	return sl.loadConfig()
}

func (sl *SendLimiter) loadConfig() (*models.SendingConfig, error) {
	var cfg models.SendingConfig
	if err := sl.DB.First(&cfg).Error; err != nil {
		return nil, err
	}

	// Lazy daily reset: server-local date-string comparison
	if today := Today(); cfg.LastResetDate != today {
		if err := sl.DB.Model(&cfg).Updates(map[string]interface{}{
			"emails_sent_today": 0,
			"last_reset_date":   today,
		}).Error; err != nil {
			return nil, err
		}
		cfg.EmailsSentToday = 0
		cfg.LastResetDate = today
	}

	return &cfg, nil
}
