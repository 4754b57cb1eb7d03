package store

import (
	"time"

	"github.com/verdantlabs/leafsense/internal/diagnose"
)

// #region record
// Record is one persisted scan verdict. IDs are caller-generated.
// Exactly one Analysis is attached at a time; the sync coordinator
// replaces it wholesale and recomputes Status from the same value.
type Record struct {
	ID            string              `json:"id"`
	CreatedAt     time.Time           `json:"createdAt"`
	CropType      string              `json:"cropType"`
	ImagePath     string              `json:"imagePath,omitempty"`
	Status        diagnose.CropStatus `json:"status"`
	Analysis      diagnose.Analysis   `json:"analysis"`
	Feedback      string              `json:"feedback,omitempty"`
	PendingSync   bool                `json:"isPendingSync"`
	SyncAttempts  int                 `json:"syncAttempts"`
	LastSyncError string              `json:"lastSyncError,omitempty"`
}
// #endregion record

// #region settings
// Settings is the process-wide configuration read at each analysis
// invocation. The analysis core never mutates it.
type Settings struct {
	Sensitivity        diagnose.Sensitivity `json:"stressSensitivity"`
	StressThreshold    int                  `json:"stressThreshold"`
	InsuranceThreshold int                  `json:"insuranceThreshold"`
	AutoSync           bool                 `json:"autoSync"`
}

// DefaultSettings returns the configuration used until a grower saves
// their own.
func DefaultSettings() Settings {
	return Settings{
		Sensitivity:        diagnose.SensitivityStandard,
		StressThreshold:    60,
		InsuranceThreshold: 30,
		AutoSync:           true,
	}
}
// #endregion settings
