package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/leafsense/internal/audit"
	"github.com/verdantlabs/leafsense/internal/connectivity"
	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/orchestrator"
	"github.com/verdantlabs/leafsense/internal/remote"
	"github.com/verdantlabs/leafsense/internal/store"
	"github.com/verdantlabs/leafsense/internal/syncer"
)

// #region main
func main() {
	dbPath := envOr("LEAFSENSE_DB", "leafsense.db")
	imageDir := envOr("LEAFSENSE_IMAGE_DIR", "images")
	cloudURL := envOr("CLOUD_API_URL", "https://api.leafsense.example.com")
	apiKey := envOr("CLOUD_API_KEY", "")

	// Initialize record store
	st, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := os.MkdirAll(imageDir, 0755); err != nil {
		log.Fatalf("failed to create image dir %s: %v", imageDir, err)
	}

	// Cloud path is optional; without a key every scan stays local
	checker := connectivity.NewHTTPChecker(cloudURL)
	var analyzer orchestrator.RemoteAnalyzer
	if apiKey != "" {
		analyzer = remote.NewClient(cloudURL, apiKey)
	}
	engine := orchestrator.NewOrchestrator(analyzer, checker)

	loader := func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(imageDir, path))
	}
	coordinator := syncer.NewCoordinator(st, engine, loader, printProgress)

	fmt.Println("LeafSense field scanner ready.")
	fmt.Printf("  DB: %s | Cloud: %s\n", dbPath, cloudURL)
	fmt.Println("Type '<crop> <image-path>' to scan, 'sync' to reconcile, 'quit' to exit:")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if line == "sync" {
			summary := coordinator.Run(context.Background())
			fmt.Printf("sync: started=%v synced=%d failed=%d skipped=%d\n",
				summary.Started, summary.Synced, summary.Failed, summary.Skipped)
			continue
		}

		crop, imagePath, ok := splitScanLine(line)
		if !ok {
			fmt.Println("expected: <crop> <image-path>")
			continue
		}

		image, err := os.ReadFile(imagePath)
		if err != nil {
			log.Printf("read image: %v", err)
			continue
		}

		// Settings can change between scans, reload each time
		settings, err := st.GetSettings()
		if err != nil {
			log.Printf("read settings: %v", err)
			continue
		}

		outcome := engine.Analyze(context.Background(), image, crop, settings.Sensitivity)
		status := diagnose.StatusFor(outcome.Analysis, settings.StressThreshold, settings.InsuranceThreshold)

		printVerdict(outcome, status)

		rec, err := saveScan(st, imageDir, crop, image, imagePath, outcome, status)
		if err != nil {
			log.Printf("save record: %v", err)
			continue
		}

		fmt.Printf("[%s] status=%s source=%s pending=%v\n",
			shortID(rec.ID), status, outcome.Source, rec.PendingSync)
	}
}
// #endregion main

// #region persist
// saveScan copies the photo into the image directory and stores the
// verdict as a field record, queued for reconciliation unless the
// verdict already came from the cloud.
func saveScan(st *store.Store, imageDir, crop string, image []byte, sourcePath string, outcome orchestrator.Outcome, status diagnose.CropStatus) (store.Record, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(sourcePath))
	if err := os.WriteFile(filepath.Join(imageDir, name), image, 0644); err != nil {
		return store.Record{}, fmt.Errorf("copy image: %w", err)
	}

	rec := store.Record{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		CropType:    crop,
		ImagePath:   name,
		Status:      status,
		Analysis:    outcome.Analysis,
		PendingSync: outcome.Source != orchestrator.SourceRemote,
	}
	if err := st.CreateRecord(rec); err != nil {
		return store.Record{}, err
	}

	detail, _ := json.Marshal(outcome.Analysis)
	err := audit.Log(st.DB(), audit.Entry{
		RecordID:    rec.ID,
		TriggerType: audit.TriggerAnalyze,
		Source:      string(outcome.Source),
		Verdict:     string(status),
		DetailJSON:  string(detail),
		Reason:      outcome.Reason,
	})
	if err != nil {
		log.Printf("audit error: %v", err)
	}

	return rec, nil
}
// #endregion persist

// #region output
func printVerdict(outcome orchestrator.Outcome, status diagnose.CropStatus) {
	a := outcome.Analysis

	fmt.Printf("\n%s (confidence %.2f)\n", a.DiseaseDetected, a.ConfidenceScore)
	if a.DiseaseDescription != "" {
		fmt.Println(a.DiseaseDescription)
	}
	fmt.Printf("  Expected loss:  %d%%\n", a.ExpectedLoss)
	fmt.Printf("  Risk level:     %s\n", a.RiskLevel)
	fmt.Printf("  Stress level:   %d%%\n", a.StressProbability)
	fmt.Printf("  Status:         %s\n", status)
	fmt.Printf("  Treatment:      %s\n", a.TreatmentUrgency)
	if a.SymptomlessStress {
		fmt.Println("  Symptomless stress detected")
	}
	if len(a.Recommendations) > 0 {
		fmt.Println("  Recommendations:")
		for _, r := range a.Recommendations {
			fmt.Printf("    - %s\n", r)
		}
	}
	if outcome.Reason != "" {
		fmt.Printf("  (local verdict: %s)\n", outcome.Reason)
	}
	fmt.Println()
}

func printProgress(p syncer.Progress) {
	if p.CurrentCrop != "" {
		fmt.Printf("  sync %d/%d (%s)\n", p.Current, p.Total, p.CurrentCrop)
		return
	}
	fmt.Printf("  sync %s %d/%d\n", p.Status, p.Current, p.Total)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
// #endregion output

// #region helpers
func splitScanLine(line string) (crop, path string, ok bool) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	crop = strings.TrimSpace(parts[0])
	path = strings.TrimSpace(parts[1])
	if crop == "" || path == "" {
		return "", "", false
	}
	return crop, path, true
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
