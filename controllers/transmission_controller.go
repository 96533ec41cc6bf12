package controller

import (
	"log"
	"time"

	"leadmailer/models"
	"leadmailer/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

type TransmissionController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTransmissionController(db *gorm.DB, logger *log.Logger) *TransmissionController {
	return &TransmissionController{DB: db, Logger: logger}
}

type transmissionInput struct {
	Name                string     `json:"name" validate:"required"`
	Subject             string     `json:"subject" validate:"required"`
	Body                string     `json:"body" validate:"required"`
	Mode                string     `json:"mode" validate:"omitempty,oneof=immediate scheduled"`
	ScheduledAt         *time.Time `json:"scheduled_at"`
	SendIntervalSeconds int        `json:"send_interval_seconds" validate:"gte=0"`
	AccessFilter        string     `json:"access_filter" validate:"omitempty,oneof=all accessed not_accessed"`
	SituationFilter     string     `json:"situation_filter" validate:"omitempty,oneof=all active abandoned none"`
	SendOrder           string     `json:"send_order" validate:"omitempty,oneof=newest_first oldest_first"`
}

func (tc *TransmissionController) ListTransmissions(c *fiber.Ctx) error {
	var transmissions []models.Transmission
	if err := tc.DB.Order("created_at DESC").Find(&transmissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list transmissions",
		})
	}
	return c.JSON(transmissions)
}

func (tc *TransmissionController) GetTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	var pending int64
	tc.DB.Model(&models.TransmissionRecipient{}).
		Where("transmission_id = ? AND status = ?", transmission.ID, models.RecipientPending).
		Count(&pending)

	return c.JSON(fiber.Map{
		"transmission":  transmission,
		"pending_count": pending,
	})
}

func (tc *TransmissionController) CreateTransmission(c *fiber.Ctx) error {
	var input transmissionInput
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

	transmission := models.Transmission{
		Name:                input.Name,
		Subject:             input.Subject,
		Body:                input.Body,
		SendIntervalSeconds: input.SendIntervalSeconds,
		ScheduledAt:         input.ScheduledAt,
		Status:              models.StatusDraft,
	}
	if input.Mode != "" {
		transmission.Mode = models.TransmissionMode(input.Mode)
	}
	if input.AccessFilter != "" {
		transmission.AccessFilter = models.AccessFilter(input.AccessFilter)
	}
	if input.SituationFilter != "" {
		transmission.SituationFilter = models.SituationFilter(input.SituationFilter)
	}
	if input.SendOrder != "" {
		transmission.SendOrder = models.SendOrder(input.SendOrder)
	}

	if err := tc.DB.Create(&transmission).Error; err != nil {
		utils.LogError("transmission_create_failed", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create transmission",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(transmission)
}

func (tc *TransmissionController) UpdateTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	var input transmissionInput
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

	updates := map[string]interface{}{
		"name":                  input.Name,
		"subject":               input.Subject,
		"body":                  input.Body,
		"scheduled_at":          input.ScheduledAt,
		"send_interval_seconds": input.SendIntervalSeconds,
	}
	if input.Mode != "" {
		updates["mode"] = input.Mode
	}
	if input.AccessFilter != "" {
		updates["access_filter"] = input.AccessFilter
	}
	if input.SituationFilter != "" {
		updates["situation_filter"] = input.SituationFilter
	}
	if input.SendOrder != "" {
		updates["send_order"] = input.SendOrder
	}

	if err := tc.DB.Model(&transmission).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update transmission",
		})
	}

	return c.JSON(transmission)
}

// DeleteTransmission removes a transmission and cascades its recipient queue
func (tc *TransmissionController) DeleteTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("transmission_id = ?", transmission.ID).
			Delete(&models.TransmissionRecipient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&transmission).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete transmission",
		})
	}

	return c.JSON(fiber.Map{"message": "Transmission deleted"})
}
