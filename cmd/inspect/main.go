package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/verdantlabs/leafsense/internal/audit"
	"github.com/verdantlabs/leafsense/internal/store"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to leafsense.db")
	last := flag.Int("last", 20, "show N most recent records")
	recordID := flag.String("record", "", "show single record detail")
	status := flag.String("status", "", "filter list to one status (healthy|stressed|diseased|critical)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/leafsense.db [--last N] [--record id] [--status name] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *recordID != "" {
		if err := runDetailMode(st, *recordID, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(st, *last, *status, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RecordID     string `json:"record_id"`
	CropType     string `json:"crop_type"`
	Status       string `json:"status"`
	ExpectedLoss int    `json:"expected_loss"`
	Disease      string `json:"disease"`
	PendingSync  bool   `json:"pending_sync"`
	SyncAttempts int    `json:"sync_attempts"`
	SyncError    string `json:"sync_error,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func runListMode(st *store.Store, last int, statusFilter string, jsonOut bool) error {
	records, err := st.ListRecords(last)
	if err != nil {
		return err
	}
	if statusFilter != "" {
		filtered := records[:0]
		for _, r := range records {
			if string(r.Status) == statusFilter {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no records found")
		return nil
	}

	// Build rows (store returns newest first, reverse for chronological)
	rows := make([]listRow, len(records))
	for i, r := range records {
		rows[len(records)-1-i] = listRow{
			RecordID:     r.ID,
			CropType:     r.CropType,
			Status:       string(r.Status),
			ExpectedLoss: r.Analysis.ExpectedLoss,
			Disease:      r.Analysis.DiseaseDetected,
			PendingSync:  r.PendingSync,
			SyncAttempts: r.SyncAttempts,
			SyncError:    r.LastSyncError,
			CreatedAt:    r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	return printListTable(rows)
}

func printListTable(rows []listRow) error {
	fmt.Printf("%-10s  %-10s  %-9s  %5s  %-20s  %-7s  %5s  %s\n",
		"Record", "Crop", "Status", "Loss", "Disease", "Pending", "Tries", "Time")
	fmt.Printf("%-10s+-%-10s+-%-9s+-%5s+-%-20s+-%-7s+-%5s+-%s\n",
		"----------", "----------", "---------", "-----", "--------------------", "-------", "-----", "--------------------")

	for _, r := range rows {
		pending := "—"
		if r.PendingSync {
			pending = "yes"
		}
		fmt.Printf("%-10s  %-10s  %-9s  %4d%%  %-20s  %-7s  %5d  %s\n",
			shortID(r.RecordID), r.CropType, r.Status, r.ExpectedLoss,
			truncate(r.Disease, 20), pending, r.SyncAttempts, r.CreatedAt)
	}

	fmt.Printf("\nStatus counts:\n")
	printStatusCounts(rows)
	return nil
}

func printStatusCounts(rows []listRow) {
	counts := map[string]int{}
	pending := 0
	for _, r := range rows {
		counts[r.Status]++
		if r.PendingSync {
			pending++
		}
	}
	order := []string{"healthy", "stressed", "diseased", "critical"}
	for _, name := range order {
		if counts[name] == 0 {
			continue
		}
		fmt.Printf("  %-12s %d\n", name, counts[name])
	}
	fmt.Printf("  %-12s %d\n", "pending", pending)
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RecordID        string       `json:"record_id"`
	CropType        string       `json:"crop_type"`
	CreatedAt       string       `json:"created_at"`
	Status          string       `json:"status"`
	ImagePath       string       `json:"image_path,omitempty"`
	Disease         string       `json:"disease"`
	Description     string       `json:"description,omitempty"`
	ExpectedLoss    int          `json:"expected_loss"`
	Confidence      float64      `json:"confidence"`
	Similarity      float64      `json:"similarity"`
	StressProb      int          `json:"stress_probability"`
	Symptomless     bool         `json:"symptomless_stress"`
	Urgency         string       `json:"treatment_urgency"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Feedback        string       `json:"feedback,omitempty"`
	PendingSync     bool         `json:"pending_sync"`
	SyncAttempts    int          `json:"sync_attempts"`
	SyncError       string       `json:"sync_error,omitempty"`
	Trail           []trailEntry `json:"trail,omitempty"`
}

type trailEntry struct {
	Trigger   string `json:"trigger"`
	Source    string `json:"source,omitempty"`
	Verdict   string `json:"verdict,omitempty"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runDetailMode(st *store.Store, recordID string, jsonOut bool) error {
	rec, err := st.GetRecord(recordID)
	if err != nil {
		return err
	}

	entries, err := audit.ForRecord(st.DB(), rec.ID, 50)
	if err != nil {
		return err
	}

	a := rec.Analysis
	out := detailOutput{
		RecordID:        rec.ID,
		CropType:        rec.CropType,
		CreatedAt:       rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Status:          string(rec.Status),
		ImagePath:       rec.ImagePath,
		Disease:         a.DiseaseDetected,
		Description:     a.DiseaseDescription,
		ExpectedLoss:    a.ExpectedLoss,
		Confidence:      a.ConfidenceScore,
		Similarity:      a.SimilarityScore,
		StressProb:      a.StressProbability,
		Symptomless:     a.SymptomlessStress,
		Urgency:         string(a.TreatmentUrgency),
		Recommendations: a.Recommendations,
		Feedback:        rec.Feedback,
		PendingSync:     rec.PendingSync,
		SyncAttempts:    rec.SyncAttempts,
		SyncError:       rec.LastSyncError,
	}
	for _, e := range entries {
		out.Trail = append(out.Trail, trailEntry{
			Trigger:   e.TriggerType,
			Source:    e.Source,
			Verdict:   e.Verdict,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Record:     %s\n", out.RecordID)
	fmt.Printf("Crop:       %s\n", out.CropType)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Status:     %s\n", out.Status)
	if out.ImagePath != "" {
		fmt.Printf("Image:      %s\n", out.ImagePath)
	}
	fmt.Printf("Disease:    %s\n", out.Disease)
	fmt.Printf("Loss:       %d%%\n", out.ExpectedLoss)
	fmt.Printf("Confidence: %.2f\n", out.Confidence)
	fmt.Printf("Similarity: %.4f\n", out.Similarity)
	fmt.Printf("Stress:     %d%%\n", out.StressProb)
	fmt.Printf("Urgency:    %s\n", out.Urgency)
	if out.Symptomless {
		fmt.Println("Symptomless stress detected")
	}

	if len(out.Recommendations) > 0 {
		fmt.Printf("\nRecommendations:\n")
		for _, r := range out.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}
	if out.Feedback != "" {
		fmt.Printf("\nFeedback: %s\n", out.Feedback)
	}

	fmt.Printf("\nSync:\n")
	fmt.Printf("  Pending:   %v\n", out.PendingSync)
	fmt.Printf("  Attempts:  %d\n", out.SyncAttempts)
	if out.SyncError != "" {
		fmt.Printf("  Last err:  %s\n", out.SyncError)
	}

	if len(out.Trail) > 0 {
		fmt.Printf("\nAudit trail:\n")
		for _, e := range out.Trail {
			line := fmt.Sprintf("  %s  %-12s", e.CreatedAt, e.Trigger)
			if e.Source != "" {
				line += fmt.Sprintf("  source=%s", e.Source)
			}
			if e.Verdict != "" {
				line += fmt.Sprintf("  verdict=%s", e.Verdict)
			}
			if e.Reason != "" {
				line += fmt.Sprintf("  (%s)", e.Reason)
			}
			fmt.Println(line)
		}
	}

	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion output
