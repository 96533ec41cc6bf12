package models

import (
	"time"

	"gorm.io/gorm"
)

// DelayUnit is the unit of a funnel step's delay
type DelayUnit string

const (
	DelayMinutes DelayUnit = "minutes"
	DelayHours   DelayUnit = "hours"
	DelayDays    DelayUnit = "days"
	DelayWeeks   DelayUnit = "weeks"
)

func (u DelayUnit) Valid() bool {
	switch u {
	case DelayMinutes, DelayHours, DelayDays, DelayWeeks:
		return true
	}
	return false
}

// Funnel represents a multi-step campaign where each lead progresses through
// an ordered sequence of templates with per-step delays
type Funnel struct {
	gorm.Model

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	AccessFilter    AccessFilter    `gorm:"default:'all'" json:"access_filter"`
	SituationFilter SituationFilter `gorm:"default:'all'" json:"situation_filter"`
	SendOrder       SendOrder       `gorm:"default:'newest_first'" json:"send_order"`

	Active bool `gorm:"default:false;index" json:"active"`

	// Optional randomized spacing between funnel sends, in seconds. When
	// IntervalMaxSeconds > 0 the worker draws one value per send from
	// [min, max] and enforces it through the shared send limiter.
	IntervalMinSeconds int `gorm:"default:0" json:"interval_min_seconds"`
	IntervalMaxSeconds int `gorm:"default:0" json:"interval_max_seconds"`

	// Relations
	Templates []FunnelTemplate `gorm:"foreignKey:FunnelID" json:"templates,omitempty"`
}

// FunnelTemplate is one step in a funnel's template sequence. Position is
// strictly increasing within a funnel; gaps are allowed.
type FunnelTemplate struct {
	gorm.Model
	FunnelID uint `gorm:"not null;index" json:"funnel_id"`

	Position int    `gorm:"not null" json:"position"`
	Subject  string `gorm:"not null" json:"subject"`
	Body     string `gorm:"type:text" json:"body"`

	DelayValue int       `gorm:"default:0" json:"delay_value"`
	DelayUnit  DelayUnit `gorm:"default:'days'" json:"delay_unit"`

	// Optional fixed time of day ("HH:MM"), honored by the timezone-aware
	// delay strategy only
	SendTime *string `json:"send_time"`

	// No column default: an explicitly inactive step must persist as such
	Active bool `json:"active"`

	// Relations
	Funnel Funnel `json:"-"`
}

type ProgressStatus string

const (
	ProgressActive    ProgressStatus = "active"
	ProgressCompleted ProgressStatus = "completed"
	ProgressCancelled ProgressStatus = "cancelled"
)

// FunnelLeadProgress is the per-lead cursor within a funnel's template
// sequence. NextTemplateID is null iff the lead is finished (terminal status
// or no further active template at a higher position).
type FunnelLeadProgress struct {
	gorm.Model
	FunnelID uint `gorm:"not null;uniqueIndex:idx_funnel_lead" json:"funnel_id"`
	LeadID   uint `gorm:"not null;uniqueIndex:idx_funnel_lead" json:"lead_id"`

	CurrentTemplateID *uint      `json:"current_template_id"`
	NextTemplateID    *uint      `json:"next_template_id"`
	NextSendAt        *time.Time `gorm:"index" json:"next_send_at"`

	Status ProgressStatus `gorm:"default:'active';index" json:"status"`

	// Relations
	Funnel Funnel `json:"-"`
	Lead   Lead   `json:"-"`
}

func (FunnelLeadProgress) TableName() string {
	return "funnel_lead_progress"
}

// FunnelSendHistory records every send attempt, successful or not
type FunnelSendHistory struct {
	gorm.Model
	FunnelID   uint `gorm:"not null;index" json:"funnel_id"`
	TemplateID uint `gorm:"not null;index" json:"template_id"`
	LeadID     uint `gorm:"not null;index" json:"lead_id"`

	Success      bool    `gorm:"default:false" json:"success"`
	MessageID    string  `json:"message_id"`
	ErrorMessage *string `json:"error_message"`
}

func (FunnelSendHistory) TableName() string {
	return "funnel_send_history"
}
