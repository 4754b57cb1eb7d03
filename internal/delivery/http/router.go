package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/verdantlabs/leafsense/internal/orchestrator"
	"github.com/verdantlabs/leafsense/internal/store"
	"github.com/verdantlabs/leafsense/internal/syncer"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, st *store.Store, engine *orchestrator.Orchestrator, sync *syncer.Coordinator, imageDir string) {
	handler := NewHandler(st, engine, sync, imageDir)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// One-shot diagnosis
		api.Post("/analyze", handler.Analyze)

		// Field records
		api.Get("/records", handler.ListRecords)
		api.Post("/records", handler.CreateRecord)
		api.Get("/records/:id", handler.GetRecord)
		api.Delete("/records/:id", handler.DeleteRecord)
		api.Put("/records/:id/feedback", handler.UpdateFeedback)
		api.Post("/records/:id/reset-sync", handler.ResetSync)

		// Cloud reconciliation
		api.Post("/sync", handler.TriggerSync)
		api.Get("/sync/status", handler.SyncStatus)

		// Diagnosis settings
		api.Get("/settings", handler.GetSettings)
		api.Put("/settings", handler.SaveSettings)

		// Decision trail
		api.Get("/audit", handler.AuditLog)
	}
}

// ErrorHandler renders handler errors with the shared response envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
