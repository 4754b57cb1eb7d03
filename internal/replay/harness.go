package replay

import (
	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/store"
	"github.com/verdantlabs/leafsense/internal/vision"
)

// #region types
// StoredVerdict is the slice of a persisted record a replay compares:
// the detected disease, the loss estimate, and the derived status.
type StoredVerdict struct {
	DiseaseDetected string
	ExpectedLoss    int
	Status          diagnose.CropStatus
}

// Case is one stored record prepared for re-assessment.
type Case struct {
	RecordID string
	CropType string
	Image    []byte // nil replays the no-image default path
	Stored   StoredVerdict
}

// Result captures the outcome of re-assessing one case against the
// current profiles and settings.
type Result struct {
	RecordID string
	CropType string
	Action   string // "unchanged" | "loss_shifted" | "status_changed" | "verdict_changed"
	Old      StoredVerdict
	New      StoredVerdict

	// Full fresh assessment, for detailed inspection
	Analysis diagnose.Analysis
}

// Summary provides aggregate drift stats from a replay run.
type Summary struct {
	TotalCases     int
	Unchanged      int
	LossShifts     int
	StatusChanges  int
	VerdictChanges int
}

// #endregion types

// #region replay
// Replay re-assesses every case through the local pipeline under the
// given settings and classifies how each verdict moved. Operates
// entirely in-memory; the stored analyses are never mutated.
func Replay(cases []Case, settings store.Settings) []Result {
	results := make([]Result, 0, len(cases))

	for _, c := range cases {
		features := vision.DefaultFeatures()
		if len(c.Image) > 0 {
			if grid, err := vision.Decode(c.Image); err == nil {
				features = vision.Extract(grid)
			}
		}

		analysis := diagnose.Assess(features, settings.Sensitivity)
		status := diagnose.StatusFor(analysis, settings.StressThreshold, settings.InsuranceThreshold)
		fresh := StoredVerdict{
			DiseaseDetected: analysis.DiseaseDetected,
			ExpectedLoss:    analysis.ExpectedLoss,
			Status:          status,
		}

		action := "unchanged"
		switch {
		case fresh.DiseaseDetected != c.Stored.DiseaseDetected:
			action = "verdict_changed"
		case fresh.Status != c.Stored.Status:
			action = "status_changed"
		case fresh.ExpectedLoss != c.Stored.ExpectedLoss:
			action = "loss_shifted"
		}

		results = append(results, Result{
			RecordID: c.RecordID,
			CropType: c.CropType,
			Action:   action,
			Old:      c.Stored,
			New:      fresh,
			Analysis: analysis,
		})
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{TotalCases: len(results)}
	for _, r := range results {
		switch r.Action {
		case "unchanged":
			s.Unchanged++
		case "loss_shifted":
			s.LossShifts++
		case "status_changed":
			s.StatusChanges++
		case "verdict_changed":
			s.VerdictChanges++
		}
	}
	return s
}

// CasesFromRecords prepares stored records for replay. Records whose
// image cannot be loaded (or with no loader at all) replay the
// no-image default path.
func CasesFromRecords(records []store.Record, loadImage func(string) ([]byte, error)) []Case {
	cases := make([]Case, 0, len(records))
	for _, rec := range records {
		var image []byte
		if loadImage != nil && rec.ImagePath != "" {
			if data, err := loadImage(rec.ImagePath); err == nil {
				image = data
			}
		}
		cases = append(cases, Case{
			RecordID: rec.ID,
			CropType: rec.CropType,
			Image:    image,
			Stored: StoredVerdict{
				DiseaseDetected: rec.Analysis.DiseaseDetected,
				ExpectedLoss:    rec.Analysis.ExpectedLoss,
				Status:          rec.Status,
			},
		})
	}
	return cases
}

// #endregion replay
