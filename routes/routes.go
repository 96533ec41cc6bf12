package routes

import (
	"log"
	"os"

	controller "leadmailer/controllers"
	"leadmailer/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// SetupRoutes wires the admin surface consumed by the dashboard plus the
// public unsubscribe endpoint
func SetupRoutes(app *fiber.App, db *gorm.DB, limiter *utils.SendLimiter, variations *utils.VariationCache) {
	apiLogger := log.New(os.Stdout, "API: ", log.Ldate|log.Ltime|log.Lshortfile)

	requestLog := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	transmissionController := controller.NewTransmissionController(db, apiLogger)
	funnelController := controller.NewFunnelController(db, apiLogger)
	settingsController := controller.NewSettingsController(db, apiLogger, limiter)

	transmissions := app.Group("/transmissions", requestLog)
	transmissions.Get("/", transmissionController.ListTransmissions)
	transmissions.Post("/", transmissionController.CreateTransmission)
	transmissions.Get("/:id", transmissionController.GetTransmission)
	transmissions.Put("/:id", transmissionController.UpdateTransmission)
	transmissions.Delete("/:id", transmissionController.DeleteTransmission)
	transmissions.Post("/:id/launch", transmissionController.LaunchTransmission)
	transmissions.Post("/:id/enable", transmissionController.EnableTransmission)
	transmissions.Post("/:id/disable", transmissionController.DisableTransmission)
	transmissions.Get("/:id/preview", transmissionController.PreviewTransmission)

	funnels := app.Group("/funnels", requestLog)
	funnels.Get("/", funnelController.ListFunnels)
	funnels.Post("/", funnelController.CreateFunnel)
	funnels.Get("/:id", funnelController.GetFunnel)
	funnels.Put("/:id", funnelController.UpdateFunnel)
	funnels.Delete("/:id", funnelController.DeleteFunnel)
	funnels.Post("/:id/templates", funnelController.CreateTemplate)
	funnels.Put("/:id/templates/:templateId", funnelController.UpdateTemplate)
	funnels.Delete("/:id/templates/:templateId", funnelController.DeleteTemplate)
	funnels.Post("/:id/enroll", funnelController.EnrollLead)
	funnels.Post("/:id/enroll-eligible", funnelController.EnrollEligible)
	funnels.Get("/:id/progress", funnelController.ListProgress)
	funnels.Get("/:id/history", funnelController.ListSendHistory)
	funnels.Post("/generate-variations", funnelController.GenerateVariations(variations))

	settings := app.Group("/settings", requestLog)
	settings.Get("/sending", settingsController.GetSendingConfig)
	settings.Put("/sending", settingsController.UpdateSendingConfig)
	settings.Get("/scheduler", settingsController.SchedulerStatus)

	// Public, linked from every email footer
	app.Get("/unsubscribe/:token", settingsController.Unsubscribe)

	apiLogger.Println("Routes initialized successfully")
}
