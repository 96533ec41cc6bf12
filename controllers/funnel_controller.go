package controller

import (
	"log"

	"leadmailer/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FunnelController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewFunnelController(db *gorm.DB, logger *log.Logger) *FunnelController {
	return &FunnelController{DB: db, Logger: logger}
}

type funnelInput struct {
	Name               string `json:"name" validate:"required"`
	Description        string `json:"description"`
	AccessFilter       string `json:"access_filter" validate:"omitempty,oneof=all accessed not_accessed"`
	SituationFilter    string `json:"situation_filter" validate:"omitempty,oneof=all active abandoned none"`
	SendOrder          string `json:"send_order" validate:"omitempty,oneof=newest_first oldest_first"`
	Active             *bool  `json:"active"`
	IntervalMinSeconds int    `json:"interval_min_seconds" validate:"gte=0"`
	IntervalMaxSeconds int    `json:"interval_max_seconds" validate:"gte=0"`
}

type funnelTemplateInput struct {
	Position   int     `json:"position" validate:"required,gt=0"`
	Subject    string  `json:"subject" validate:"required"`
	Body       string  `json:"body" validate:"required"`
	DelayValue int     `json:"delay_value" validate:"gte=0"`
	DelayUnit  string  `json:"delay_unit" validate:"omitempty,oneof=minutes hours days weeks"`
	SendTime   *string `json:"send_time"`
	Active     *bool   `json:"active"`
}

func (fc *FunnelController) ListFunnels(c *fiber.Ctx) error {
	var funnels []models.Funnel
	if err := fc.DB.Preload("Templates", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("created_at DESC").Find(&funnels).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list funnels",
		})
	}
	return c.JSON(funnels)
}

func (fc *FunnelController) GetFunnel(c *fiber.Ctx) error {
	var funnel models.Funnel
	if err := fc.DB.Preload("Templates", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&funnel, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Funnel not found",
		})
	}
	return c.JSON(funnel)
}

func (fc *FunnelController) CreateFunnel(c *fiber.Ctx) error {
	var input funnelInput
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
	if input.IntervalMaxSeconds > 0 && input.IntervalMaxSeconds < input.IntervalMinSeconds {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "interval_max_seconds must be >= interval_min_seconds",
		})
	}

	funnel := models.Funnel{
		Name:               input.Name,
		Description:        input.Description,
		IntervalMinSeconds: input.IntervalMinSeconds,
		IntervalMaxSeconds: input.IntervalMaxSeconds,
	}
	if input.AccessFilter != "" {
		funnel.AccessFilter = models.AccessFilter(input.AccessFilter)
	}
	if input.SituationFilter != "" {
		funnel.SituationFilter = models.SituationFilter(input.SituationFilter)
	}
	if input.SendOrder != "" {
		funnel.SendOrder = models.SendOrder(input.SendOrder)
	}
	if input.Active != nil {
		funnel.Active = *input.Active
	}

	if err := fc.DB.Create(&funnel).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create funnel",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(funnel)
}

func (fc *FunnelController) UpdateFunnel(c *fiber.Ctx) error {
	var funnel models.Funnel
	if err := fc.DB.First(&funnel, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Funnel not found",
		})
	}

	var input funnelInput
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
		"name":                 input.Name,
		"description":          input.Description,
		"interval_min_seconds": input.IntervalMinSeconds,
		"interval_max_seconds": input.IntervalMaxSeconds,
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
	if input.Active != nil {
		updates["active"] = *input.Active
	}

	if err := fc.DB.Model(&funnel).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update funnel",
		})
	}

	return c.JSON(funnel)
}

func (fc *FunnelController) DeleteFunnel(c *fiber.Ctx) error {
	var funnel models.Funnel
	if err := fc.DB.First(&funnel, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Funnel not found",
		})
	}

	err := fc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("funnel_id = ?", funnel.ID).Delete(&models.FunnelTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("funnel_id = ?", funnel.ID).Delete(&models.FunnelLeadProgress{}).Error; err != nil {
			return err
		}
		return tx.Delete(&funnel).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete funnel",
		})
	}

	return c.JSON(fiber.Map{"message": "Funnel deleted"})
}

func (fc *FunnelController) CreateTemplate(c *fiber.Ctx) error {
	var funnel models.Funnel
	if err := fc.DB.First(&funnel, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Funnel not found",
		})
	}

	var input funnelTemplateInput
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

	var clash int64
	fc.DB.Model(&models.FunnelTemplate{}).
		Where("funnel_id = ? AND position = ?", funnel.ID, input.Position).
		Count(&clash)
	if clash > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A template already exists at this position",
		})
	}

	tmpl := models.FunnelTemplate{
		FunnelID:   funnel.ID,
		Position:   input.Position,
		Subject:    input.Subject,
		Body:       input.Body,
		DelayValue: input.DelayValue,
		SendTime:   input.SendTime,
		Active:     true,
	}
	if input.DelayUnit != "" {
		tmpl.DelayUnit = models.DelayUnit(input.DelayUnit)
	}
	if input.Active != nil {
		tmpl.Active = *input.Active
	}

	if err := fc.DB.Create(&tmpl).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(tmpl)
}

func (fc *FunnelController) UpdateTemplate(c *fiber.Ctx) error {
	var tmpl models.FunnelTemplate
	if err := fc.DB.Where("funnel_id = ?", c.Params("id")).
		First(&tmpl, c.Params("templateId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var input funnelTemplateInput
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
		"position":    input.Position,
		"subject":     input.Subject,
		"body":        input.Body,
		"delay_value": input.DelayValue,
		"send_time":   input.SendTime,
	}
	if input.DelayUnit != "" {
		updates["delay_unit"] = input.DelayUnit
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}

	if err := fc.DB.Model(&tmpl).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.JSON(tmpl)
}

func (fc *FunnelController) DeleteTemplate(c *fiber.Ctx) error {
	var tmpl models.FunnelTemplate
	if err := fc.DB.Where("funnel_id = ?", c.Params("id")).
		First(&tmpl, c.Params("templateId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	if err := fc.DB.Delete(&tmpl).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}

	return c.JSON(fiber.Map{"message": "Template deleted"})
}
