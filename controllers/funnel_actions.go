package controller

import (
	"leadmailer/config"
	"leadmailer/models"
	"leadmailer/utils"

	"github.com/gofiber/fiber/v2"
)

// EnrollLead points a lead at the funnel's first active template
func (fc *FunnelController) EnrollLead(c *fiber.Ctx) error {
	var funnel models.Funnel
	if err := fc.DB.First(&funnel, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Funnel not found",
		})
	}

	var input struct {
		LeadID uint `json:"lead_id" validate:"required"`
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

	var lead models.Lead
	if err := fc.DB.First(&lead, input.LeadID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}
	if lead.Unsubscribed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Lead is unsubscribed",
		})
	}

	progress, err := utils.EnrollLeadInFunnel(fc.DB, &funnel, &lead, config.AppConfig.FunnelTZMode)
	if err != nil {
		utils.LogError("funnel_enroll_failed", err, map[string]interface{}{
			"funnel_id": funnel.ID,
			"lead_id":   lead.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enroll lead",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(progress)
}

// EnrollEligible bulk-enrolls every lead matching the funnel's filters
func (fc *FunnelController) EnrollEligible(c *fiber.Ctx) error {
	var funnel models.Funnel
	if err := fc.DB.First(&funnel, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Funnel not found",
		})
	}

	ids, err := utils.EligibleLeadIDs(fc.DB, funnel.AccessFilter, funnel.SituationFilter, funnel.SendOrder)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query eligible leads",
		})
	}

	enrolled := 0
	for _, leadID := range ids {
		var lead models.Lead
		if err := fc.DB.First(&lead, leadID).Error; err != nil {
			continue
		}
		if _, err := utils.EnrollLeadInFunnel(fc.DB, &funnel, &lead, config.AppConfig.FunnelTZMode); err != nil {
			fc.Logger.Printf("Failed to enroll lead %d in funnel %d: %v", leadID, funnel.ID, err)
			continue
		}
		enrolled++
	}

	utils.LogEvent("funnel_bulk_enrolled", map[string]interface{}{
		"funnel_id": funnel.ID,
		"enrolled":  enrolled,
	})

	return c.JSON(fiber.Map{
		"eligible": len(ids),
		"enrolled": enrolled,
	})
}

// ListProgress returns the per-lead cursors for a funnel
func (fc *FunnelController) ListProgress(c *fiber.Ctx) error {
	var rows []models.FunnelLeadProgress
	if err := fc.DB.Where("funnel_id = ?", c.Params("id")).
		Order("next_send_at ASC").
		Find(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list progress",
		})
	}
	return c.JSON(rows)
}

// ListSendHistory returns the attempt log for a funnel
func (fc *FunnelController) ListSendHistory(c *fiber.Ctx) error {
	var rows []models.FunnelSendHistory
	if err := fc.DB.Where("funnel_id = ?", c.Params("id")).
		Order("created_at DESC").
		Limit(200).
		Find(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list send history",
		})
	}
	return c.JSON(rows)
}

// GenerateVariations pre-warms the content variation cache for every
// non-default sender account against a funnel template or a transmission
func (fc *FunnelController) GenerateVariations(variations *utils.VariationCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input struct {
			Scope      string `json:"scope" validate:"required,oneof=transmission funnel"`
			CampaignID uint   `json:"campaign_id" validate:"required"`
			Subject    string `json:"subject" validate:"required"`
			Body       string `json:"body" validate:"required"`
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

		var accounts []models.SenderAccount
		if err := fc.DB.Where("active = ? AND is_default = ?", true, false).Find(&accounts).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load sender accounts",
			})
		}

		generated := 0
		for i := range accounts {
			if _, _, err := variations.Resolve(input.Scope, input.CampaignID, &accounts[i], input.Subject, input.Body); err != nil {
				fc.Logger.Printf("Variation generation failed for account %d: %v", accounts[i].ID, err)
				continue
			}
			generated++
		}

		return c.JSON(fiber.Map{
			"accounts":  len(accounts),
			"generated": generated,
		})
	}
}
