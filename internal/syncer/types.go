package syncer

// #region status
// Status is the observable phase of the sync coordinator.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// #endregion status

// #region progress
// Progress is one tick of sync progress. Current counts processed
// records, so the first tick of a pass carries Current 0.
type Progress struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	Status      Status `json:"status"`
	CurrentCrop string `json:"currentCrop,omitempty"`
}

// ProgressFunc receives progress ticks during a pass. A nil func
// disables reporting. Ticks are delivered from the syncing goroutine.
type ProgressFunc func(Progress)

// #endregion progress

// #region summary
// Summary reports the result of one Run call. Started is false when
// the call was a no-op (already syncing, offline, no credential, or
// nothing to process).
type Summary struct {
	Started bool `json:"started"`
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
}

// #endregion summary

// #region image-loader
// ImageLoader resolves a record's stored image reference to raw bytes.
// A nil loader or a load failure degrades to an image-free analysis.
type ImageLoader func(path string) ([]byte, error)

// #endregion image-loader
