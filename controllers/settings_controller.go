package controller

import (
	"log"
	"time"

	"leadmailer/models"
	"leadmailer/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SettingsController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Limiter *utils.SendLimiter
}

func NewSettingsController(db *gorm.DB, logger *log.Logger, limiter *utils.SendLimiter) *SettingsController {
	return &SettingsController{DB: db, Logger: logger, Limiter: limiter}
}

func (sc *SettingsController) GetSendingConfig(c *fiber.Ctx) error {
	cfg, err := sc.Limiter.Config()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load sending config",
		})
	}
	return c.JSON(cfg)
}

func (sc *SettingsController) UpdateSendingConfig(c *fiber.Ctx) error {
	var input struct {
		DailyLimit      *int  `json:"daily_limit" validate:"omitempty,gt=0"`
		IntervalSeconds *int  `json:"interval_seconds" validate:"omitempty,gte=0"`
		Enabled         *bool `json:"enabled"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var cfg models.SendingConfig
	if err := sc.DB.First(&cfg).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sending config not found",
		})
	}

	updates := map[string]interface{}{}
	if input.DailyLimit != nil {
		updates["daily_limit"] = *input.DailyLimit
	}
	if input.IntervalSeconds != nil {
		updates["interval_seconds"] = *input.IntervalSeconds
	}
	if input.Enabled != nil {
		updates["enabled"] = *input.Enabled
	}

	if len(updates) > 0 {
		if err := sc.DB.Model(&cfg).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update sending config",
			})
		}
	}

	return c.JSON(cfg)
}

// SchedulerStatus summarizes the due work the schedulers are looking at
func (sc *SettingsController) SchedulerStatus(c *fiber.Ctx) error {
	now := time.Now()

	var dueTransmissions int64
	sc.DB.Model(&models.Transmission{}).
		Where("enabled = ? AND status IN ? AND (next_run_at IS NULL OR next_run_at <= ?)",
			true, []models.TransmissionStatus{models.StatusScheduled, models.StatusProcessing}, now).
		Count(&dueTransmissions)

	var dueProgress int64
	sc.DB.Model(&models.FunnelLeadProgress{}).
		Where("status = ? AND next_send_at IS NOT NULL AND next_send_at <= ?", models.ProgressActive, now).
		Count(&dueProgress)

	cfg, err := sc.Limiter.Config()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load sending config",
		})
	}

	return c.JSON(fiber.Map{
		"due_transmissions": dueTransmissions,
		"due_funnel_rows":   dueProgress,
		"emails_sent_today": cfg.EmailsSentToday,
		"daily_limit":       cfg.DailyLimit,
		"sending_enabled":   cfg.Enabled,
	})
}

// Unsubscribe is the public endpoint behind the footer link. It validates the
// signed token and flags the lead; both schedulers honor the flag on their
// next tick.
func (sc *SettingsController) Unsubscribe(c *fiber.Ctx) error {
	leadID, err := utils.ParseUnsubscribeToken(c.Params("token"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid unsubscribe link",
		})
	}

	if err := sc.DB.Model(&models.Lead{}).
		Where("id = ?", leadID).
		Update("unsubscribed", true).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsubscribe",
		})
	}

	utils.LogEvent("lead_unsubscribed", map[string]interface{}{
		"lead_id": leadID,
	})

	return c.JSON(fiber.Map{"message": "You have been unsubscribed"})
}
