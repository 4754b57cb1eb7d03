package diagnose

// diseasedLossAbove splits Stressed from Diseased when no insurance
// claim is warranted yet.
const diseasedLossAbove = 15

// #region status
// StatusFor derives the record-level status from an analysis and the
// active thresholds. Pure: recomputed whenever the attached analysis
// changes so the two never drift apart.
func StatusFor(a Analysis, stressThreshold, insuranceThreshold int) CropStatus {
	switch {
	case a.ExpectedLoss > insuranceThreshold:
		return StatusCritical
	case a.ExpectedLoss > diseasedLossAbove:
		return StatusDiseased
	case a.SymptomlessStress || a.StressProbability >= stressThreshold:
		return StatusStressed
	default:
		return StatusHealthy
	}
}
// #endregion status
