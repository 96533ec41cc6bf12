package controller

import (
	"leadmailer/models"
	"leadmailer/utils"

	"github.com/gofiber/fiber/v2"
)

// LaunchTransmission rebuilds the recipient queue and starts (or schedules)
// the drain. Launching twice without lead-table changes yields the same queue.
func (tc *TransmissionController) LaunchTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	if transmission.Status == models.StatusProcessing {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transmission is already running",
		})
	}

	if err := utils.LaunchTransmission(tc.DB, &transmission); err != nil {
		utils.LogError("transmission_launch_failed", err, map[string]interface{}{
			"transmission_id": transmission.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to launch transmission",
		})
	}

	utils.LogEvent("transmission_launched", map[string]interface{}{
		"transmission_id":  transmission.ID,
		"total_recipients": transmission.TotalRecipients,
		"status":           transmission.Status,
	})

	return c.JSON(transmission)
}

func (tc *TransmissionController) EnableTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	if err := utils.EnableTransmission(tc.DB, &transmission); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enable transmission",
		})
	}

	return c.JSON(transmission)
}

func (tc *TransmissionController) DisableTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	if err := utils.DisableTransmission(tc.DB, &transmission); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to disable transmission",
		})
	}

	return c.JSON(transmission)
}

// PreviewTransmission renders the campaign content against the first eligible
// lead so the dashboard can show what will actually go out
func (tc *TransmissionController) PreviewTransmission(c *fiber.Ctx) error {
	var transmission models.Transmission
	if err := tc.DB.First(&transmission, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transmission not found",
		})
	}

	ids, err := utils.EligibleLeadIDs(tc.DB, transmission.AccessFilter, transmission.SituationFilter, transmission.SendOrder)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query eligible leads",
		})
	}
	if len(ids) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No eligible leads to preview with",
		})
	}

	var lead models.Lead
	if err := tc.DB.First(&lead, ids[0]).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load lead",
		})
	}

	subject := utils.RenderTemplate(transmission.Subject, &lead)
	html := utils.RenderTemplate(transmission.Body, &lead)
	if unsubURL, err := utils.UnsubscribeURL(lead.ID); err == nil {
		html = utils.WrapWithFooter(html, unsubURL)
	}

	return c.JSON(fiber.Map{
		"lead_id":        lead.ID,
		"to":             lead.Email,
		"subject":        subject,
		"html":           html,
		"eligible_leads": len(ids),
	})
}
