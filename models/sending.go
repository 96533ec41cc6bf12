package models

import (
	"time"

	"gorm.io/gorm"
)

// SendingConfig is the shared singleton that gates every outbound send:
// global daily cap, minimum inter-send interval, and the persisted counter
// that coordinates concurrent scheduler processes.
type SendingConfig struct {
	gorm.Model

	// No column defaults here: zero values (sending disabled, no interval)
	// are meaningful and must survive a create as-is. CreateDefaultSendingConfig
	// seeds the sensible starting values.
	DailyLimit      int  `json:"daily_limit"`
	IntervalSeconds int  `json:"interval_seconds"`
	Enabled         bool `json:"enabled"`

	EmailsSentToday int `gorm:"default:0" json:"emails_sent_today"`
	// Server-local "YYYY-MM-DD"; the counter resets lazily on the first gate
	// check of a new day
	LastResetDate string     `json:"last_reset_date"`
	LastSentAt    *time.Time `json:"last_sent_at"`
}

// ContentVariation caches an AI-rewritten subject/body for one sending
// identity so multiple accounts don't emit byte-identical content. Rows are
// keyed by a content signature and pruned when the source content changes.
type ContentVariation struct {
	gorm.Model

	Scope           string `gorm:"not null;index:idx_variation_key" json:"scope"` // transmission, funnel
	CampaignID      uint   `gorm:"not null;index:idx_variation_key" json:"campaign_id"`
	SenderAccountID uint   `gorm:"not null;index:idx_variation_key" json:"sender_account_id"`
	Signature       string `gorm:"not null;index" json:"signature"`

	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"type:text" json:"body"`

	// Word-level distance from the default identity's content; higher wins
	// when multiple variants share a signature
	Distinctiveness float64 `gorm:"default:0" json:"distinctiveness"`
}
