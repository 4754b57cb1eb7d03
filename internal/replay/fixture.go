package replay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/store"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Settings        FixtureSettings         `json:"settings"`
	Cases           []FixtureCase           `json:"cases"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureSettings mirrors store.Settings with fixture JSON tags.
type FixtureSettings struct {
	Sensitivity        string `json:"sensitivity"`
	StressThreshold    int    `json:"stress_threshold"`
	InsuranceThreshold int    `json:"insurance_threshold"`
}

// FixtureStored is the persisted verdict a case replays against.
type FixtureStored struct {
	DiseaseDetected string `json:"disease_detected"`
	ExpectedLoss    int    `json:"expected_loss"`
	Status          string `json:"status"`
}

// FixtureCase mirrors replay.Case with JSON tags. The image, when
// present, is carried inline as base64 so fixtures stay self-contained.
type FixtureCase struct {
	RecordID    string        `json:"record_id"`
	CropType    string        `json:"crop_type"`
	ImageBase64 string        `json:"image_base64,omitempty"`
	Stored      FixtureStored `json:"stored"`
}

// FixtureExpectedResult captures the expected action per case.
type FixtureExpectedResult struct {
	RecordID string `json:"record_id"`
	Action   string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToSettings converts fixture settings to domain Settings.
func (fs *FixtureSettings) ToSettings() store.Settings {
	return store.Settings{
		Sensitivity:        diagnose.Sensitivity(fs.Sensitivity),
		StressThreshold:    fs.StressThreshold,
		InsuranceThreshold: fs.InsuranceThreshold,
	}
}

// ToCase converts a FixtureCase to a domain Case, decoding the inline
// image when one is present.
func (fc *FixtureCase) ToCase() (Case, error) {
	c := Case{
		RecordID: fc.RecordID,
		CropType: fc.CropType,
		Stored: StoredVerdict{
			DiseaseDetected: fc.Stored.DiseaseDetected,
			ExpectedLoss:    fc.Stored.ExpectedLoss,
			Status:          diagnose.CropStatus(fc.Stored.Status),
		},
	}
	if fc.ImageBase64 != "" {
		image, err := base64.StdEncoding.DecodeString(fc.ImageBase64)
		if err != nil {
			return Case{}, fmt.Errorf("case %s: decode image: %w", fc.RecordID, err)
		}
		c.Image = image
	}
	return c, nil
}

// #endregion fixture-loader
