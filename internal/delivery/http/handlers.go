package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/verdantlabs/leafsense/internal/audit"
	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/orchestrator"
	"github.com/verdantlabs/leafsense/internal/store"
	"github.com/verdantlabs/leafsense/internal/syncer"
)

// Handler contains all HTTP handlers
type Handler struct {
	store    *store.Store
	engine   *orchestrator.Orchestrator
	sync     *syncer.Coordinator
	imageDir string
}

// NewHandler creates a new handler
func NewHandler(st *store.Store, engine *orchestrator.Orchestrator, sync *syncer.Coordinator, imageDir string) *Handler {
	return &Handler{
		store:    st,
		engine:   engine,
		sync:     sync,
		imageDir: imageDir,
	}
}

// AnalyzeResponse is the payload returned by the analyze endpoint
type AnalyzeResponse struct {
	Analysis  diagnose.Analysis   `json:"analysis"`
	Source    string              `json:"source"`
	Status    diagnose.CropStatus `json:"status"`
	CropType  string              `json:"cropType"`
	ImagePath string              `json:"imagePath,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// CreateRecordRequest is the body for saving an analysis as a field record
type CreateRecordRequest struct {
	ID        string            `json:"id"`
	CropType  string            `json:"cropType"`
	ImagePath string            `json:"imagePath"`
	Analysis  diagnose.Analysis `json:"analysis"`
	Source    string            `json:"source"`
	Feedback  string            `json:"feedback"`
}

// FeedbackRequest is the body for attaching farmer feedback to a record
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "leafsense",
		"version": "1.0.0",
	})
}

// Analyze runs one diagnosis over an optional uploaded leaf image
func (h *Handler) Analyze(c *fiber.Ctx) error {
	ctx := c.Context()

	cropType := c.FormValue("cropType")
	if cropType == "" {
		return fiber.NewError(fiber.StatusBadRequest, "cropType is required")
	}

	var image []byte
	var imagePath string
	if file, err := c.FormFile("image"); err == nil {
		image, err = readUpload(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read uploaded image")
		}
		if imagePath, err = h.saveImage(image, file.Filename); err != nil {
			// diagnosis still runs, the record just has no stored photo
			log.Printf("Failed to store uploaded image: %v", err)
			imagePath = ""
		}
	}

	settings, err := h.store.GetSettings()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load settings")
	}

	outcome := h.engine.Analyze(ctx, image, cropType, settings.Sensitivity)
	status := diagnose.StatusFor(outcome.Analysis, settings.StressThreshold, settings.InsuranceThreshold)

	h.auditAnalyze(outcome, status)

	return c.JSON(fiber.Map{
		"success": true,
		"data": AnalyzeResponse{
			Analysis:  outcome.Analysis,
			Source:    string(outcome.Source),
			Status:    status,
			CropType:  cropType,
			ImagePath: imagePath,
			Reason:    outcome.Reason,
		},
	})
}

// CreateRecord saves an analysis as a field record
func (h *Handler) CreateRecord(c *fiber.Ctx) error {
	var req CreateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.CropType == "" {
		return fiber.NewError(fiber.StatusBadRequest, "cropType is required")
	}

	settings, err := h.store.GetSettings()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load settings")
	}

	rec := store.Record{
		ID:        req.ID,
		CreatedAt: time.Now().UTC(),
		CropType:  req.CropType,
		ImagePath: req.ImagePath,
		Status:    diagnose.StatusFor(req.Analysis, settings.StressThreshold, settings.InsuranceThreshold),
		Analysis:  req.Analysis,
		Feedback:  req.Feedback,
		// only cloud verdicts are born reconciled
		PendingSync: req.Source != string(orchestrator.SourceRemote),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := h.store.CreateRecord(rec); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save record")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    rec,
	})
}

// ListRecords returns saved records, newest first
func (h *Handler) ListRecords(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 { // max page size
		limit = 50
	}

	records, err := h.store.ListRecords(limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch records")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

// GetRecord returns a single record by id
func (h *Handler) GetRecord(c *fiber.Ctx) error {
	rec, err := h.store.GetRecord(c.Params("id"))
	if err != nil {
		return storeError(err, "Failed to fetch record")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rec,
	})
}

// DeleteRecord removes a record by id
func (h *Handler) DeleteRecord(c *fiber.Ctx) error {
	if err := h.store.DeleteRecord(c.Params("id")); err != nil {
		return storeError(err, "Failed to delete record")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// UpdateFeedback attaches or replaces farmer feedback on a record
func (h *Handler) UpdateFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.store.UpdateFeedback(c.Params("id"), req.Feedback); err != nil {
		return storeError(err, "Failed to update feedback")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// ResetSync clears a record's retry counter so the next pass picks it up again
func (h *Handler) ResetSync(c *fiber.Ctx) error {
	if err := h.store.ResetSyncAttempts(c.Params("id")); err != nil {
		return storeError(err, "Failed to reset sync attempts")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// TriggerSync runs one reconciliation pass and reports what it did
func (h *Handler) TriggerSync(c *fiber.Ctx) error {
	summary := h.sync.Run(c.Context())

	return c.JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}

// SyncStatus reports the current state of the sync coordinator
func (h *Handler) SyncStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"status": h.sync.State()},
	})
}

// GetSettings returns the active diagnosis settings
func (h *Handler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.store.GetSettings()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load settings")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    settings,
	})
}

// SaveSettings validates and persists diagnosis settings
func (h *Handler) SaveSettings(c *fiber.Ctx) error {
	var cfg store.Settings
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if !validSensitivity(cfg.Sensitivity) {
		return fiber.NewError(fiber.StatusBadRequest, "Unknown sensitivity level")
	}
	if cfg.StressThreshold < 0 || cfg.StressThreshold > 100 ||
		cfg.InsuranceThreshold < 0 || cfg.InsuranceThreshold > 100 {
		return fiber.NewError(fiber.StatusBadRequest, "Thresholds must be between 0 and 100")
	}

	if err := h.store.SaveSettings(cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save settings")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    cfg,
	})
}

// AuditLog returns the most recent decision trail entries
func (h *Handler) AuditLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	entries, err := audit.Recent(h.store.DB(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch audit log")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"count":   len(entries),
	})
}

func (h *Handler) auditAnalyze(outcome orchestrator.Outcome, status diagnose.CropStatus) {
	detail, _ := json.Marshal(outcome.Analysis)
	err := audit.Log(h.store.DB(), audit.Entry{
		TriggerType: audit.TriggerAnalyze,
		Source:      string(outcome.Source),
		Verdict:     string(status),
		DetailJSON:  string(detail),
		Reason:      outcome.Reason,
	})
	if err != nil {
		log.Printf("Failed to record audit entry: %v", err)
	}
}

// saveImage writes an upload under a fresh name and returns that name,
// relative to the image directory so the database stays portable.
func (h *Handler) saveImage(data []byte, original string) (string, error) {
	if h.imageDir == "" {
		return "", nil
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(original))
	if err := os.WriteFile(filepath.Join(h.imageDir, name), data, 0644); err != nil {
		return "", err
	}
	return name, nil
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func storeError(err error, fallback string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Record not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}

func validSensitivity(s diagnose.Sensitivity) bool {
	switch s {
	case diagnose.SensitivityConservative, diagnose.SensitivityStandard,
		diagnose.SensitivityHigh, diagnose.SensitivityAggressive:
		return true
	default:
		return false
	}
}
