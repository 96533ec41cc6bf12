package models

import (
	"time"

	"gorm.io/gorm"
)

// TransmissionMode controls when a launched transmission starts draining
type TransmissionMode string

const (
	ModeImmediate TransmissionMode = "immediate"
	ModeScheduled TransmissionMode = "scheduled"
)

func (m TransmissionMode) Valid() bool {
	return m == ModeImmediate || m == ModeScheduled
}

type TransmissionStatus string

const (
	StatusDraft      TransmissionStatus = "draft"
	StatusScheduled  TransmissionStatus = "scheduled"
	StatusProcessing TransmissionStatus = "processing"
	StatusCompleted  TransmissionStatus = "completed"
	StatusPaused     TransmissionStatus = "paused"
	StatusFailed     TransmissionStatus = "failed"
)

// SendOrder fixes how eligible leads are ordered into the queue
type SendOrder string

const (
	NewestFirst SendOrder = "newest_first"
	OldestFirst SendOrder = "oldest_first"
)

func (o SendOrder) Valid() bool {
	return o == NewestFirst || o == OldestFirst
}

// AccessFilter narrows eligibility by whether the lead ever accessed the platform
type AccessFilter string

const (
	AccessAll         AccessFilter = "all"
	AccessAccessed    AccessFilter = "accessed"
	AccessNotAccessed AccessFilter = "not_accessed"
)

func (f AccessFilter) Valid() bool {
	return f == AccessAll || f == AccessAccessed || f == AccessNotAccessed
}

// SituationFilter narrows eligibility by the lead's purchase situation
type SituationFilter string

const (
	SituationAll       SituationFilter = "all"
	SituationActive    SituationFilter = "active"
	SituationAbandoned SituationFilter = "abandoned"
	SituationNone      SituationFilter = "none"
)

func (f SituationFilter) Valid() bool {
	switch f {
	case SituationAll, SituationActive, SituationAbandoned, SituationNone:
		return true
	}
	return false
}

// Transmission represents a one-shot, filter-targeted email campaign
type Transmission struct {
	gorm.Model

	Name    string `gorm:"not null" json:"name"`
	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"type:text" json:"body"`

	// Scheduling
	Mode                TransmissionMode `gorm:"default:'immediate'" json:"mode"`
	ScheduledAt         *time.Time       `json:"scheduled_at"`
	SendIntervalSeconds int              `gorm:"default:0" json:"send_interval_seconds"`

	// Eligibility filters applied at launch time
	AccessFilter    AccessFilter    `gorm:"default:'all'" json:"access_filter"`
	SituationFilter SituationFilter `gorm:"default:'all'" json:"situation_filter"`
	SendOrder       SendOrder       `gorm:"default:'newest_first'" json:"send_order"`

	Enabled bool               `gorm:"default:false" json:"enabled"`
	Status  TransmissionStatus `gorm:"default:'draft'" json:"status"`

	// Statistics (denormalized for performance)
	TotalRecipients int `gorm:"default:0" json:"total_recipients"`
	SentCount       int `gorm:"default:0" json:"sent_count"`
	FailedCount     int `gorm:"default:0" json:"failed_count"`

	LastSentAt  *time.Time `json:"last_sent_at"`
	NextRunAt   *time.Time `json:"next_run_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	LastError   *string    `json:"last_error"`

	// Relations
	Recipients []TransmissionRecipient `gorm:"foreignKey:TransmissionID" json:"recipients,omitempty"`
}

// PendingCount is derived from the denormalized counters
func (t *Transmission) PendingCount() int {
	return t.TotalRecipients - t.SentCount - t.FailedCount
}

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// TransmissionRecipient is one (transmission, lead) pairing in the send queue.
// The queue is a disposable snapshot: launching a transmission wipes and
// rebuilds all of its rows.
type TransmissionRecipient struct {
	gorm.Model
	TransmissionID uint `gorm:"not null;uniqueIndex:idx_transmission_lead" json:"transmission_id"`
	LeadID         uint `gorm:"not null;uniqueIndex:idx_transmission_lead" json:"lead_id"`

	Position int             `gorm:"not null;index" json:"position"`
	Status   RecipientStatus `gorm:"default:'pending';index" json:"status"`

	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage *string    `json:"error_message"`

	// Relations
	Transmission Transmission `json:"-"`
	Lead         Lead         `json:"-"`
}
