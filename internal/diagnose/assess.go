package diagnose

import (
	"math"

	"github.com/verdantlabs/leafsense/internal/vision"
)

// #region constants
const (
	lossScale = 35.0

	riskHighAbove   = 0.5
	riskMediumAbove = 0.2

	// Symptomless stress: elevated severity with none of the visual
	// hallmarks of an active lesion.
	symptomlessStressAbove = 0.25
	symptomlessNecroticMax = 0.1
	symptomlessEdgeMax     = 0.2

	confidenceBase = 0.5
	confidenceGain = 0.4
	confidenceCap  = 0.92

	urgentAbove   = 0.4
	followupAbove = 0.15

	leafCoverageScale = 160.0

	velocityAggressiveAbove = 0.35
	velocityModerateAbove   = 0.15

	// The local path has no weather feed, so climate risk is pinned to
	// a neutral placeholder. A cloud verdict overwrites it.
	localClimateRisk = 0.5
)
// #endregion constants

// #region guidance
const (
	stressName        = "Physiological Stress"
	stressDescription = "Stress indicators are elevated before any visible lesion. Usually nutrient, water, or root-zone trouble rather than an active pathogen."

	unknownName        = "Unknown Pathogen"
	unknownDescription = "No profile in the knowledge base matched this signature closely enough to confirm. Treat as potentially infectious until identified."
)

var stressActions = []string{
	"Apply a balanced micronutrient foliar spray",
	"Check soil moisture and drainage around the root zone",
	"Test soil pH and correct nitrogen, magnesium, and iron levels",
	"Re-scan the same plants in 3-5 days to track the trend",
}

var unknownActions = []string{
	"Isolate affected plants from healthy stock",
	"Apply a broad-spectrum copper-based fungicide",
	"Remove and destroy heavily symptomatic leaves",
	"Submit a sample for laboratory identification",
}
// #endregion guidance

// #region severity
func sensitivityMultiplier(s Sensitivity) float64 {
	switch s {
	case SensitivityAggressive:
		return 1.4
	case SensitivityHigh:
		return 1.2
	default:
		return 1.0
	}
}

// stressHeuristic folds chlorophyll loss, necrosis, and structural
// breakdown into one severity scalar, scaled by sensitivity.
func stressHeuristic(f vision.Features, s Sensitivity) float64 {
	base := (1-f.Greenness)*0.4 + f.NecroticDensity*0.4 + (1-f.ZonalIntegrity)*0.2
	return base * sensitivityMultiplier(s)
}

func riskFor(stress float64) RiskLevel {
	switch {
	case stress > riskHighAbove:
		return RiskHigh
	case stress > riskMediumAbove:
		return RiskMedium
	default:
		return RiskLow
	}
}

func urgencyFor(stress float64) Urgency {
	switch {
	case stress > urgentAbove:
		return UrgencyImmediate
	case stress > followupAbove:
		return UrgencyWithin48h
	default:
		return UrgencyMonitoring
	}
}

func velocityFor(edgeDensity float64) Velocity {
	switch {
	case edgeDensity > velocityAggressiveAbove:
		return VelocityAggressive
	case edgeDensity > velocityModerateAbove:
		return VelocityModerate
	default:
		return VelocitySlow
	}
}
// #endregion severity

// #region assess
// Assess runs the full local verdict pipeline on one feature vector:
// profile matching, the stress heuristic, and the derived display
// figures. The same vector and sensitivity always produce the same
// Analysis.
func Assess(f vision.Features, sens Sensitivity) Analysis {
	m := MatchProfile(f)
	stress := stressHeuristic(f, sens)

	lossModifier := 1.0
	if m.Confirmed() {
		lossModifier = m.Profile.LossModifier
	}
	loss := int(math.Round(stress * lossScale * lossModifier))

	a := Analysis{
		ExpectedLoss:      loss,
		ConfidenceScore:   math.Min(confidenceCap, confidenceBase+m.Score*confidenceGain),
		RiskLevel:         riskFor(stress),
		SimilarityScore:   m.Score,
		SymptomlessStress: stress > symptomlessStressAbove && f.NecroticDensity < symptomlessNecroticMax && f.EdgeDensity < symptomlessEdgeMax,
		StressProbability: clampPercent(math.Round(stress * 100)),
		TreatmentUrgency:  urgencyFor(stress),
		Metrics: Metrics{
			LeafCoverage:      int(math.Round(f.NecroticDensity * leafCoverageScale)),
			SpreadVelocity:    velocityFor(f.EdgeDensity),
			ClimateRiskFactor: localClimateRisk,
		},
	}

	switch {
	case m.Confirmed():
		a.DiseaseDetected = m.Profile.Name
		a.DiseaseDescription = m.Profile.Description
		a.Recommendations = append([]string(nil), m.Profile.Actions...)
	case a.SymptomlessStress:
		a.DiseaseDetected = stressName
		a.DiseaseDescription = stressDescription
		a.Recommendations = append([]string(nil), stressActions...)
	default:
		a.DiseaseDetected = unknownName
		a.DiseaseDescription = unknownDescription
		a.Recommendations = append([]string(nil), unknownActions...)
	}
	return a
}

func clampPercent(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
// #endregion assess
