package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a single contact tracked from purchase/signup events
type Lead struct {
	gorm.Model

	Email string `gorm:"not null;index" json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`

	// Eligibility columns read by the campaign filters
	AccessedPlatform bool            `gorm:"default:false" json:"accessed_platform"`
	Situation        SituationFilter `gorm:"default:'none';index" json:"situation"` // active, abandoned, none
	Unsubscribed     bool            `gorm:"default:false;index" json:"unsubscribed"`

	// IANA timezone used by the timezone-aware funnel delay strategy
	Timezone string `json:"timezone"`

	Source      string     `json:"source"`
	LastContact *time.Time `json:"last_contact"`
}

// SenderAccount represents one outbound email identity (SMTP credentials plus
// per-account daily capacity). Multiple active accounts diversify sender
// reputation; the mailer rotates across them by remaining capacity.
type SenderAccount struct {
	gorm.Model

	Name      string `gorm:"not null" json:"name"`
	FromEmail string `gorm:"not null" json:"from_email"`
	FromName  string `json:"from_name"`

	SMTPHost     string `gorm:"not null" json:"smtp_host"`
	SMTPPort     int    `gorm:"default:587" json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`

	Active    bool `gorm:"default:true;index" json:"active"`
	IsDefault bool `gorm:"default:false" json:"is_default"`

	DailyLimit int `gorm:"default:500" json:"daily_limit"`
	SentToday  int `gorm:"default:0" json:"sent_today"`
	TotalSent  int `gorm:"default:0" json:"total_sent"`

	LastError *string `json:"last_error"`
}
