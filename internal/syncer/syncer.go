package syncer

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/verdantlabs/leafsense/internal/audit"
	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/orchestrator"
	"github.com/verdantlabs/leafsense/internal/store"
)

const (
	// maxSyncAttempts bounds cloud calls per record. A record at the
	// cap is skipped until its counter is reset.
	maxSyncAttempts = 3

	idleCooldown = 3 * time.Second
)

// #region coordinator
// Coordinator drains the pending-record queue, one record at a time.
// At most one pass runs at any moment; extra Run calls are refused
// without error.
type Coordinator struct {
	store    *store.Store
	engine   *orchestrator.Orchestrator
	loader   ImageLoader
	progress ProgressFunc
	cooldown time.Duration

	mu      sync.Mutex
	syncing bool
	status  Status
}

// NewCoordinator wires a sync coordinator over the given store and
// analysis engine.
func NewCoordinator(st *store.Store, engine *orchestrator.Orchestrator, loader ImageLoader, progress ProgressFunc) *Coordinator {
	return &Coordinator{
		store:    st,
		engine:   engine,
		loader:   loader,
		progress: progress,
		cooldown: idleCooldown,
		status:   StatusIdle,
	}
}

// State returns the coordinator's current phase. Terminal phases
// revert to idle after a short cooldown; the cosmetic reset emits no
// progress tick.
func (c *Coordinator) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// #endregion coordinator

// #region run
// Run executes one sync pass over all pending records in oldest-first
// order. A call while a pass is active, while offline, or without a
// remote credential is a silent no-op. Records at the retry cap are
// never handed to the analysis engine.
func (c *Coordinator) Run(ctx context.Context) Summary {
	if !c.tryAcquire() {
		log.Printf("[SYNC] pass already running, ignoring request")
		return Summary{}
	}
	defer c.release()

	if !c.engine.RemoteAvailable(ctx) {
		log.Printf("[SYNC] remote unavailable, skipping pass")
		return Summary{}
	}

	pending, err := c.store.PendingRecords()
	if err != nil {
		log.Printf("[SYNC] list pending: %v", err)
		c.finish(Progress{Status: StatusFailed})
		return Summary{}
	}

	var queue []store.Record
	skipped := 0
	for _, rec := range pending {
		if rec.SyncAttempts >= maxSyncAttempts {
			skipped++
			continue
		}
		queue = append(queue, rec)
	}
	if len(queue) == 0 {
		if skipped > 0 {
			log.Printf("[SYNC] nothing to process: %d records at the retry cap", skipped)
		}
		return Summary{Skipped: skipped}
	}

	settings, err := c.store.GetSettings()
	if err != nil {
		log.Printf("[SYNC] read settings: %v", err)
		c.finish(Progress{Status: StatusFailed})
		return Summary{Skipped: skipped}
	}

	total := len(queue)
	summary := Summary{Started: true, Skipped: skipped}
	c.report(Progress{Total: total, Status: StatusSyncing})

	for i, rec := range queue {
		if c.syncRecord(ctx, rec, settings) {
			summary.Synced++
		} else {
			summary.Failed++
		}
		c.report(Progress{Current: i + 1, Total: total, Status: StatusSyncing, CurrentCrop: rec.CropType})
	}

	log.Printf("[SYNC] pass complete: synced=%d failed=%d skipped=%d",
		summary.Synced, summary.Failed, summary.Skipped)
	c.auditPass(summary)
	c.finish(Progress{Current: total, Total: total, Status: StatusCompleted})
	return summary
}

// #endregion run

// #region per-record
// syncRecord reconciles one record against the cloud. Only a genuine
// remote verdict counts as success; a local fallback leaves the stored
// analysis untouched and burns one attempt.
func (c *Coordinator) syncRecord(ctx context.Context, rec store.Record, settings store.Settings) bool {
	outcome := c.engine.Analyze(ctx, c.loadImage(rec.ImagePath), rec.CropType, settings.Sensitivity)

	if outcome.Source != orchestrator.SourceRemote {
		if err := c.store.ApplySyncFailure(rec.ID, outcome.Reason); err != nil {
			log.Printf("[SYNC] record %s: mark failure: %v", rec.ID, err)
		}
		c.auditRecord(rec.ID, outcome, "")
		return false
	}

	status := diagnose.StatusFor(outcome.Analysis, settings.StressThreshold, settings.InsuranceThreshold)
	if err := c.store.ApplySyncSuccess(rec.ID, outcome.Analysis, status); err != nil {
		log.Printf("[SYNC] record %s: apply result: %v", rec.ID, err)
		return false
	}
	c.auditRecord(rec.ID, outcome, status)
	return true
}

func (c *Coordinator) loadImage(path string) []byte {
	if c.loader == nil || path == "" {
		return nil
	}
	data, err := c.loader(path)
	if err != nil {
		log.Printf("[SYNC] load image %s: %v", path, err)
		return nil
	}
	return data
}

// #endregion per-record

// #region audit
func (c *Coordinator) auditRecord(recordID string, outcome orchestrator.Outcome, status diagnose.CropStatus) {
	entry := audit.Entry{
		RecordID:    recordID,
		TriggerType: audit.TriggerRecordSync,
		Source:      string(outcome.Source),
		Verdict:     string(status),
		Reason:      outcome.Reason,
	}
	if status != "" {
		detail, _ := json.Marshal(outcome.Analysis)
		entry.DetailJSON = string(detail)
	}
	if err := audit.Log(c.store.DB(), entry); err != nil {
		log.Printf("[SYNC] audit error: %v", err)
	}
}

func (c *Coordinator) auditPass(summary Summary) {
	detail, _ := json.Marshal(summary)
	err := audit.Log(c.store.DB(), audit.Entry{
		TriggerType: audit.TriggerSyncPass,
		DetailJSON:  string(detail),
	})
	if err != nil {
		log.Printf("[SYNC] audit error: %v", err)
	}
}

// #endregion audit

// #region exclusion
// tryAcquire claims the single-pass slot. The slot is released on
// every exit path of Run so the coordinator cannot wedge in syncing.
func (c *Coordinator) tryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncing {
		return false
	}
	c.syncing = true
	return true
}

func (c *Coordinator) release() {
	c.mu.Lock()
	c.syncing = false
	c.mu.Unlock()
}

// #endregion exclusion

// #region reporting
func (c *Coordinator) report(p Progress) {
	c.mu.Lock()
	c.status = p.Status
	c.mu.Unlock()
	if c.progress != nil {
		c.progress(p)
	}
}

// finish reports a terminal tick and schedules the cooldown reset. The
// reset backs off if another pass has started in the meantime.
func (c *Coordinator) finish(p Progress) {
	c.report(p)
	final := p.Status
	time.AfterFunc(c.cooldown, func() {
		c.mu.Lock()
		if !c.syncing && c.status == final {
			c.status = StatusIdle
		}
		c.mu.Unlock()
	})
}

// #endregion reporting
