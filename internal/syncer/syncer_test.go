package syncer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verdantlabs/leafsense/internal/audit"
	"github.com/verdantlabs/leafsense/internal/connectivity"
	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/orchestrator"
	"github.com/verdantlabs/leafsense/internal/remote"
	"github.com/verdantlabs/leafsense/internal/store"
)

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "leafsense.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func localGuess() diagnose.Analysis {
	return diagnose.Analysis{
		ExpectedLoss:      5,
		ConfidenceScore:   0.5,
		RiskLevel:         diagnose.RiskLow,
		Recommendations:   []string{"Re-scan in 48 hours"},
		DiseaseDetected:   "Unknown Pathogen",
		StressProbability: 12,
		TreatmentUrgency:  diagnose.UrgencyMonitoring,
		Metrics: diagnose.Metrics{
			SpreadVelocity:    diagnose.VelocitySlow,
			ClimateRiskFactor: 0.5,
		},
	}
}

func cloudVerdict() diagnose.Analysis {
	return diagnose.Analysis{
		ExpectedLoss:       42,
		ConfidenceScore:    0.9,
		RiskLevel:          diagnose.RiskHigh,
		Recommendations:    []string{"Apply copper fungicide"},
		DiseaseDetected:    "Late Blight",
		DiseaseDescription: "Cloud-confirmed infection",
		SimilarityScore:    0.88,
		StressProbability:  80,
		TreatmentUrgency:   diagnose.UrgencyImmediate,
		Metrics: diagnose.Metrics{
			LeafCoverage:      70,
			SpreadVelocity:    diagnose.VelocityAggressive,
			ClimateRiskFactor: 0.7,
		},
	}
}

func seedPending(t *testing.T, st *store.Store, id, crop string, attempts int, created time.Time) {
	t.Helper()
	err := st.CreateRecord(store.Record{
		ID:           id,
		CreatedAt:    created,
		CropType:     crop,
		Status:       diagnose.StatusHealthy,
		Analysis:     localGuess(),
		PendingSync:  true,
		SyncAttempts: attempts,
	})
	if err != nil {
		t.Fatalf("seed record %s: %v", id, err)
	}
}

type stubRemote struct {
	analysis diagnose.Analysis
	err      error
	calls    int
	reqs     []remote.Request
}

func (s *stubRemote) Analyze(_ context.Context, req remote.Request) (diagnose.Analysis, error) {
	s.calls++
	s.reqs = append(s.reqs, req)
	return s.analysis, s.err
}

type blockingRemote struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) Analyze(context.Context, remote.Request) (diagnose.Analysis, error) {
	b.entered <- struct{}{}
	<-b.release
	return cloudVerdict(), nil
}

func onlineEngine(analyzer orchestrator.RemoteAnalyzer) *orchestrator.Orchestrator {
	return orchestrator.NewOrchestrator(analyzer, connectivity.Static(true))
}

func TestRunSyncsPendingRecords(t *testing.T) {
	st := tempStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPending(t, st, "rec-a", "tomato", 0, base)
	seedPending(t, st, "rec-b", "maize", 1, base.Add(time.Second))
	if err := st.CreateRecord(store.Record{
		ID: "rec-synced", CreatedAt: base.Add(2 * time.Second), CropType: "potato",
		Status: diagnose.StatusHealthy, Analysis: localGuess(),
	}); err != nil {
		t.Fatalf("seed synced record: %v", err)
	}

	stub := &stubRemote{analysis: cloudVerdict()}
	var ticks []Progress
	c := NewCoordinator(st, onlineEngine(stub), nil, func(p Progress) { ticks = append(ticks, p) })
	c.cooldown = time.Hour

	summary := c.Run(context.Background())

	want := Summary{Started: true, Synced: 2}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
	if stub.calls != 2 {
		t.Errorf("remote called %d times, want 2", stub.calls)
	}
	if stub.reqs[0].CropType != "tomato" || stub.reqs[1].CropType != "maize" {
		t.Errorf("remote call order = %s,%s, want oldest first", stub.reqs[0].CropType, stub.reqs[1].CropType)
	}
	if stub.reqs[0].Sensitivity != diagnose.SensitivityStandard {
		t.Errorf("request sensitivity = %q, want default standard", stub.reqs[0].Sensitivity)
	}

	for _, id := range []string{"rec-a", "rec-b"} {
		rec, err := st.GetRecord(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if rec.PendingSync {
			t.Errorf("%s still pending after successful sync", id)
		}
		if rec.Analysis.DiseaseDetected != "Late Blight" {
			t.Errorf("%s analysis not replaced: %q", id, rec.Analysis.DiseaseDetected)
		}
		if rec.Status != diagnose.StatusCritical {
			t.Errorf("%s status = %s, want critical for loss 42 over insurance 30", id, rec.Status)
		}
	}
	recA, _ := st.GetRecord("rec-a")
	if recA.SyncAttempts != 1 {
		t.Errorf("rec-a attempts = %d, want 1", recA.SyncAttempts)
	}
	recB, _ := st.GetRecord("rec-b")
	if recB.SyncAttempts != 2 {
		t.Errorf("rec-b attempts = %d, want 2", recB.SyncAttempts)
	}
	untouched, _ := st.GetRecord("rec-synced")
	if untouched.SyncAttempts != 0 || untouched.Analysis.DiseaseDetected != "Unknown Pathogen" {
		t.Error("non-pending record was touched by the pass")
	}

	wantTicks := []Progress{
		{Current: 0, Total: 2, Status: StatusSyncing},
		{Current: 1, Total: 2, Status: StatusSyncing, CurrentCrop: "tomato"},
		{Current: 2, Total: 2, Status: StatusSyncing, CurrentCrop: "maize"},
		{Current: 2, Total: 2, Status: StatusCompleted},
	}
	if len(ticks) != len(wantTicks) {
		t.Fatalf("got %d ticks, want %d: %+v", len(ticks), len(wantTicks), ticks)
	}
	for i, tick := range ticks {
		if tick != wantTicks[i] {
			t.Errorf("tick %d = %+v, want %+v", i, tick, wantTicks[i])
		}
	}
	if c.State() != StatusCompleted {
		t.Errorf("state = %s, want completed before cooldown", c.State())
	}
}

func TestRunFailingRemoteScenario(t *testing.T) {
	st := tempStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPending(t, st, "rec-capped", "tomato", 3, base)
	seedPending(t, st, "rec-fresh", "maize", 0, base.Add(time.Second))

	stub := &stubRemote{err: errors.New("boom")}
	c := NewCoordinator(st, onlineEngine(stub), nil, nil)
	c.cooldown = time.Hour

	summary := c.Run(context.Background())

	want := Summary{Started: true, Failed: 1, Skipped: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
	if stub.calls != 1 {
		t.Fatalf("remote called %d times, want 1 (capped record must be skipped)", stub.calls)
	}
	if stub.reqs[0].CropType != "maize" {
		t.Errorf("remote saw crop %q, want the fresh record only", stub.reqs[0].CropType)
	}

	capped, _ := st.GetRecord("rec-capped")
	if capped.SyncAttempts != 3 || !capped.PendingSync {
		t.Errorf("capped record mutated: attempts=%d pending=%v", capped.SyncAttempts, capped.PendingSync)
	}
	fresh, _ := st.GetRecord("rec-fresh")
	if fresh.SyncAttempts != 1 {
		t.Errorf("fresh record attempts = %d, want 1", fresh.SyncAttempts)
	}
	if !fresh.PendingSync {
		t.Error("fresh record must stay pending after a failed call")
	}
	if fresh.Analysis.DiseaseDetected != "Unknown Pathogen" {
		t.Error("failed sync must not replace the stored analysis")
	}
	if fresh.LastSyncError != "remote analysis failed: boom" {
		t.Errorf("lastSyncError = %q", fresh.LastSyncError)
	}
}

func TestRunMutualExclusion(t *testing.T) {
	st := tempStore(t)
	seedPending(t, st, "rec-a", "tomato", 0, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	blocking := &blockingRemote{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewCoordinator(st, onlineEngine(blocking), nil, nil)
	c.cooldown = time.Hour

	done := make(chan Summary, 1)
	go func() { done <- c.Run(context.Background()) }()
	<-blocking.entered

	second := c.Run(context.Background())
	if second != (Summary{}) {
		t.Errorf("concurrent Run = %+v, want zero no-op summary", second)
	}
	if c.State() != StatusSyncing {
		t.Errorf("state during pass = %s, want syncing", c.State())
	}

	close(blocking.release)
	first := <-done
	if !first.Started || first.Synced != 1 {
		t.Fatalf("first pass summary = %+v", first)
	}

	rec, _ := st.GetRecord("rec-a")
	if rec.SyncAttempts != 1 {
		t.Errorf("attempts = %d, want 1: the refused pass must not touch records", rec.SyncAttempts)
	}
}

func TestRunOfflineNoOp(t *testing.T) {
	st := tempStore(t)
	seedPending(t, st, "rec-a", "tomato", 0, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	stub := &stubRemote{analysis: cloudVerdict()}
	var ticks []Progress
	engine := orchestrator.NewOrchestrator(stub, connectivity.Static(false))
	c := NewCoordinator(st, engine, nil, func(p Progress) { ticks = append(ticks, p) })

	if summary := c.Run(context.Background()); summary != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", summary)
	}
	if stub.calls != 0 {
		t.Errorf("remote called %d times while offline", stub.calls)
	}
	if len(ticks) != 0 {
		t.Errorf("silent no-op emitted %d ticks", len(ticks))
	}
	rec, _ := st.GetRecord("rec-a")
	if rec.SyncAttempts != 0 || !rec.PendingSync {
		t.Error("offline no-op must not touch records")
	}
	if c.State() != StatusIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestRunNoCredentialNoOp(t *testing.T) {
	st := tempStore(t)
	seedPending(t, st, "rec-a", "tomato", 0, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	c := NewCoordinator(st, orchestrator.NewOrchestrator(nil, connectivity.Static(true)), nil, nil)

	if summary := c.Run(context.Background()); summary != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", summary)
	}
	rec, _ := st.GetRecord("rec-a")
	if rec.SyncAttempts != 0 || !rec.PendingSync {
		t.Error("no-credential no-op must not touch records")
	}
}

func TestRunEmptyQueue(t *testing.T) {
	st := tempStore(t)
	stub := &stubRemote{analysis: cloudVerdict()}
	c := NewCoordinator(st, onlineEngine(stub), nil, nil)

	if summary := c.Run(context.Background()); summary != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", summary)
	}
	if stub.calls != 0 {
		t.Errorf("remote called %d times with nothing pending", stub.calls)
	}
}

func TestRunAllRecordsCapped(t *testing.T) {
	st := tempStore(t)
	seedPending(t, st, "rec-capped", "tomato", 3, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	stub := &stubRemote{analysis: cloudVerdict()}
	var ticks []Progress
	c := NewCoordinator(st, onlineEngine(stub), nil, func(p Progress) { ticks = append(ticks, p) })

	summary := c.Run(context.Background())
	if summary != (Summary{Skipped: 1}) {
		t.Fatalf("summary = %+v, want skipped-only", summary)
	}
	if stub.calls != 0 {
		t.Errorf("remote called %d times, capped records must never reach it", stub.calls)
	}
	if len(ticks) != 0 {
		t.Errorf("skip-only pass emitted %d ticks", len(ticks))
	}
}

func TestRunUsesStoredSettings(t *testing.T) {
	st := tempStore(t)
	err := st.SaveSettings(store.Settings{
		Sensitivity:        diagnose.SensitivityHigh,
		StressThreshold:    60,
		InsuranceThreshold: 80,
		AutoSync:           false,
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	seedPending(t, st, "rec-a", "tomato", 0, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	stub := &stubRemote{analysis: cloudVerdict()}
	c := NewCoordinator(st, onlineEngine(stub), nil, nil)
	c.cooldown = time.Hour
	c.Run(context.Background())

	if stub.reqs[0].Sensitivity != diagnose.SensitivityHigh {
		t.Errorf("request sensitivity = %q, want stored high", stub.reqs[0].Sensitivity)
	}
	rec, _ := st.GetRecord("rec-a")
	if rec.Status != diagnose.StatusDiseased {
		t.Errorf("status = %s, want diseased: loss 42 is under the raised insurance threshold 80", rec.Status)
	}
}

func TestRunLoadsRecordImages(t *testing.T) {
	st := tempStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := st.CreateRecord(store.Record{
		ID: "rec-img", CreatedAt: base, CropType: "tomato", ImagePath: "leaf-1.png",
		Status: diagnose.StatusHealthy, Analysis: localGuess(), PendingSync: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	err = st.CreateRecord(store.Record{
		ID: "rec-gone", CreatedAt: base.Add(time.Second), CropType: "maize", ImagePath: "missing.png",
		Status: diagnose.StatusHealthy, Analysis: localGuess(), PendingSync: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	seedPending(t, st, "rec-noimg", "potato", 0, base.Add(2*time.Second))

	imageBytes := []byte("fake-png-bytes")
	var loadedPaths []string
	loader := func(path string) ([]byte, error) {
		loadedPaths = append(loadedPaths, path)
		if path == "missing.png" {
			return nil, fmt.Errorf("open %s: no such file", path)
		}
		return imageBytes, nil
	}

	stub := &stubRemote{analysis: cloudVerdict()}
	c := NewCoordinator(st, onlineEngine(stub), loader, nil)
	c.cooldown = time.Hour
	summary := c.Run(context.Background())

	if summary.Synced != 3 {
		t.Fatalf("synced = %d, want 3", summary.Synced)
	}
	if len(loadedPaths) != 2 {
		t.Fatalf("loader called for %v, want the two records with image paths", loadedPaths)
	}
	if want := base64.StdEncoding.EncodeToString(imageBytes); stub.reqs[0].ImageBase64 != want {
		t.Errorf("first request image = %q, want loaded bytes", stub.reqs[0].ImageBase64)
	}
	if stub.reqs[1].ImageBase64 != "" {
		t.Error("load failure must degrade to an image-free request")
	}
	if stub.reqs[2].ImageBase64 != "" {
		t.Error("record without image path must produce an image-free request")
	}
}

func TestStateCooldownResetsToIdle(t *testing.T) {
	st := tempStore(t)
	seedPending(t, st, "rec-a", "tomato", 0, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	stub := &stubRemote{analysis: cloudVerdict()}
	c := NewCoordinator(st, onlineEngine(stub), nil, nil)
	c.cooldown = 5 * time.Millisecond
	c.Run(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StatusIdle {
		if time.Now().After(deadline) {
			t.Fatalf("state stuck at %s, never reset to idle", c.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunWritesAuditTrail(t *testing.T) {
	st := tempStore(t)
	seedPending(t, st, "rec-a", "tomato", 0, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	stub := &stubRemote{analysis: cloudVerdict()}
	c := NewCoordinator(st, onlineEngine(stub), nil, nil)
	c.cooldown = time.Hour
	c.Run(context.Background())

	entries, err := audit.Recent(st.DB(), 10)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want record + pass", len(entries))
	}

	pass := entries[0]
	if pass.TriggerType != audit.TriggerSyncPass {
		t.Errorf("newest entry trigger = %s, want sync pass", pass.TriggerType)
	}
	if !strings.Contains(pass.DetailJSON, `"synced":1`) {
		t.Errorf("pass detail = %q", pass.DetailJSON)
	}

	rec := entries[1]
	if rec.TriggerType != audit.TriggerRecordSync || rec.RecordID != "rec-a" {
		t.Errorf("record entry = %+v", rec)
	}
	if rec.Source != "remote" || rec.Verdict != "critical" {
		t.Errorf("record entry source=%s verdict=%s", rec.Source, rec.Verdict)
	}
	if !strings.Contains(rec.DetailJSON, "Late Blight") {
		t.Errorf("record detail = %q", rec.DetailJSON)
	}
}
