package worker

import (
	"io"
	"log"
	"testing"
	"time"

	"leadmailer/config"
	"leadmailer/models"
	"leadmailer/utils"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.MigrateDB(db))

	config.AppConfig.EncryptionKey = "test-signing-key"
	config.AppConfig.PublicBaseURL = "https://app.example.com"
	return db
}

func seedLead(t *testing.T, db *gorm.DB, email string, createdAt time.Time, mutate func(*models.Lead)) models.Lead {
	t.Helper()

	lead := models.Lead{
		Email:     email,
		Name:      "Test Lead",
		Situation: models.SituationNone,
	}
	if mutate != nil {
		mutate(&lead)
	}
	require.NoError(t, db.Create(&lead).Error)
	require.NoError(t, db.Model(&lead).Update("created_at", createdAt).Error)
	lead.CreatedAt = createdAt
	return lead
}

func seedSendingConfig(t *testing.T, db *gorm.DB, mutate func(*models.SendingConfig)) {
	t.Helper()

	cfg := models.SendingConfig{
		DailyLimit:    1000,
		Enabled:       true,
		LastResetDate: utils.Today(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, db.Create(&cfg).Error)
}

type sentMessage struct {
	To      string
	Subject string
	HTML    string
}

// fakeMailer implements utils.CampaignMailer without touching SMTP
type fakeMailer struct {
	account   *models.SenderAccount
	rotateErr error
	failFor   map[string]error
	sent      []sentMessage
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		account: &models.SenderAccount{
			Name:       "Default",
			FromEmail:  "default@example.com",
			FromName:   "Default",
			IsDefault:  true,
			Active:     true,
			DailyLimit: 1000,
		},
		failFor: make(map[string]error),
	}
}

func (fm *fakeMailer) RotateSender() (*models.SenderAccount, error) {
	if fm.rotateErr != nil {
		return nil, fm.rotateErr
	}
	return fm.account, nil
}

func (fm *fakeMailer) SendAs(account *models.SenderAccount, to, subject, html string) (string, error) {
	if err := fm.failFor[to]; err != nil {
		return "", err
	}
	fm.sent = append(fm.sent, sentMessage{To: to, Subject: subject, HTML: html})
	return "msg-id", nil
}

type noopRewriter struct{}

func (noopRewriter) Rewrite(subject, body, scopeKey string, account *models.SenderAccount) (*utils.RewriteResult, error) {
	return &utils.RewriteResult{Applied: false, Reason: "disabled in tests"}, nil
}

func newTransmissionWorker(db *gorm.DB, mailer utils.CampaignMailer) *TransmissionWorker {
	return NewTransmissionWorker(
		db,
		mailer,
		utils.NewSendLimiter(db),
		utils.NewMemoryLocker(),
		utils.NewVariationCache(db, noopRewriter{}),
		log.New(io.Discard, "", 0),
	)
}

func newFunnelWorker(db *gorm.DB, mailer utils.CampaignMailer) *FunnelWorker {
	return NewFunnelWorker(
		db,
		mailer,
		utils.NewSendLimiter(db),
		utils.NewMemoryLocker(),
		utils.NewVariationCache(db, noopRewriter{}),
		log.New(io.Discard, "", 0),
	)
}
