package diagnose

// #region sensitivity
// Sensitivity is the user-tunable detection level. Higher levels
// multiply the stress heuristic so borderline crops surface earlier.
type Sensitivity string

const (
	SensitivityConservative Sensitivity = "conservative"
	SensitivityStandard     Sensitivity = "standard"
	SensitivityHigh         Sensitivity = "high"
	SensitivityAggressive   Sensitivity = "aggressive"
)
// #endregion sensitivity

// #region verdict-enums
// RiskLevel buckets the stress heuristic for display and triage.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Urgency tells the grower how fast to act on a verdict.
type Urgency string

const (
	UrgencyImmediate  Urgency = "immediate"
	UrgencyWithin48h  Urgency = "within_48h"
	UrgencyMonitoring Urgency = "monitoring"
)

// Velocity estimates how fast visible damage is spreading.
type Velocity string

const (
	VelocityAggressive Velocity = "aggressive"
	VelocityModerate   Velocity = "moderate"
	VelocitySlow       Velocity = "slow"
)

// CropStatus is the record-level state derived from an analysis.
type CropStatus string

const (
	StatusHealthy  CropStatus = "healthy"
	StatusStressed CropStatus = "stressed"
	StatusDiseased CropStatus = "diseased"
	StatusCritical CropStatus = "critical"
)
// #endregion verdict-enums

// #region analysis
// Metrics carries the secondary figures shown alongside a verdict.
type Metrics struct {
	LeafCoverage      int      `json:"leafCoverage"`
	SpreadVelocity    Velocity `json:"spreadVelocity"`
	ClimateRiskFactor float64  `json:"climateRiskFactor"`
}

// Analysis is the complete result of one assessment. Instances are
// treated as immutable: re-assessment or a successful cloud sync
// replaces the whole value, never individual fields.
type Analysis struct {
	ExpectedLoss       int       `json:"expectedLoss"`
	ConfidenceScore    float64   `json:"confidenceScore"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	Recommendations    []string  `json:"recommendations"`
	DiseaseDetected    string    `json:"diseaseDetected"`
	DiseaseDescription string    `json:"diseaseDescription"`
	SimilarityScore    float64   `json:"similarityScore"`
	SymptomlessStress  bool      `json:"symptomlessStressDetected"`
	StressProbability  int       `json:"stressProbability"`
	TreatmentUrgency   Urgency   `json:"treatmentUrgency"`
	Metrics            Metrics   `json:"detailedMetrics"`
}
// #endregion analysis
