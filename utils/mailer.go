package utils

import (
	"errors"
	"fmt"
	"log"

	"leadmailer/models"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// ErrNoSenderCapacity is returned when every active account has exhausted its
// daily limit. Not a fatal condition: the schedulers defer and retry.
var ErrNoSenderCapacity = errors.New("no senders with available capacity")

// CampaignMailer is the sending surface the schedulers depend on. The
// identity is resolved first so the variation cache can key content off it.
type CampaignMailer interface {
	RotateSender() (*models.SenderAccount, error)
	SendAs(account *models.SenderAccount, to, subject, html string) (string, error)
}

// SMTPMailer delivers over plain SMTP, rotating across the configured sender
// accounts
type SMTPMailer struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSMTPMailer(db *gorm.DB, logger *log.Logger) *SMTPMailer {
	return &SMTPMailer{DB: db, Logger: logger}
}

// RotateSender selects the active account with the most remaining daily
// capacity
func (m *SMTPMailer) RotateSender() (*models.SenderAccount, error) {
	var accounts []models.SenderAccount
	if err := m.DB.Where("active = ?", true).Find(&accounts).Error; err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, errors.New("no active sender accounts configured")
	}

	var best *models.SenderAccount
	maxAvailable := 0
	for i := range accounts {
		available := accounts[i].DailyLimit - accounts[i].SentToday
		if available > maxAvailable {
			maxAvailable = available
			best = &accounts[i]
		}
	}

	if best == nil || maxAvailable <= 0 {
		return nil, ErrNoSenderCapacity
	}

	return best, nil
}

// SendAs delivers one email through the given account and returns the message
// id. The account's usage counters are bumped on success.
func (m *SMTPMailer) SendAs(account *models.SenderAccount, to, subject, html string) (string, error) {
	if err := checkmail.ValidateFormat(to); err != nil {
		return "", fmt.Errorf("invalid recipient address %q: %w", to, err)
	}

	messageID := uuid.New().String()

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", account.FromName, account.FromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", messageID, account.SMTPHost))
	msg.SetBody("text/html", html)

	d := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.SMTPUsername, account.SMTPPassword)
	if err := d.DialAndSend(msg); err != nil {
		m.DB.Model(account).Update("last_error", err.Error())
		return "", fmt.Errorf("error sending email: %w", err)
	}

	if err := m.DB.Model(account).Updates(map[string]interface{}{
		"sent_today": gorm.Expr("sent_today + ?", 1),
		"total_sent": gorm.Expr("total_sent + ?", 1),
	}).Error; err != nil {
		m.Logger.Printf("Failed to update sender usage for account %d: %v", account.ID, err)
	}

	return messageID, nil
}

// CountActiveSenders reports how many identities rotation can spread across
func CountActiveSenders(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&models.SenderAccount{}).Where("active = ?", true).Count(&count).Error
	return count, err
}
