package utils

import (
	"testing"
	"time"

	"leadmailer/config"
	"leadmailer/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB gives each test its own in-memory database. The pool is pinned
// to one connection so every query sees the same sqlite instance.
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
	// CreatedAt drives the send order, so pin it explicitly
	require.NoError(t, db.Model(&lead).Update("created_at", createdAt).Error)
	lead.CreatedAt = createdAt
	return lead
}

func seedSendingConfig(t *testing.T, db *gorm.DB, mutate func(*models.SendingConfig)) models.SendingConfig {
	t.Helper()

	cfg := models.SendingConfig{
		DailyLimit:      100,
		IntervalSeconds: 0,
		Enabled:         true,
		LastResetDate:   Today(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, db.Create(&cfg).Error)
	return cfg
}
