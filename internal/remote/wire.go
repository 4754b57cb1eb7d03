package remote

import (
	"encoding/base64"
	"fmt"

	"github.com/verdantlabs/leafsense/internal/diagnose"
)

// #region request
// Request is the payload sent to the cloud analysis service.
type Request struct {
	CropType    string               `json:"cropType"`
	Sensitivity diagnose.Sensitivity `json:"sensitivity"`
	ImageBase64 string               `json:"imageBase64,omitempty"`
}

// BuildRequest assembles a Request, encoding image bytes when present.
func BuildRequest(cropType string, sens diagnose.Sensitivity, image []byte) Request {
	r := Request{CropType: cropType, Sensitivity: sens}
	if len(image) > 0 {
		r.ImageBase64 = base64.StdEncoding.EncodeToString(image)
	}
	return r
}
// #endregion request

// #region wire-shape
// wireAnalysis mirrors the response schema with pointer fields so a
// missing required field is distinguishable from a zero value. Schema
// violations fail the whole response; there is no partial acceptance.
type wireAnalysis struct {
	ExpectedLoss       *int                `json:"expectedLoss"`
	ConfidenceScore    *float64            `json:"confidenceScore"`
	RiskLevel          *diagnose.RiskLevel `json:"riskLevel"`
	Recommendations    *[]string           `json:"recommendations"`
	DiseaseDetected    *string             `json:"diseaseDetected"`
	DiseaseDescription *string             `json:"diseaseDescription"`
	SimilarityScore    *float64            `json:"similarityScore"`
	SymptomlessStress  *bool               `json:"symptomlessStressDetected"`
	StressProbability  *int                `json:"stressProbability"`
	TreatmentUrgency   *diagnose.Urgency   `json:"treatmentUrgency"`
	Metrics            *wireMetrics        `json:"detailedMetrics"`
}

type wireMetrics struct {
	LeafCoverage      *int               `json:"leafCoverage"`
	SpreadVelocity    *diagnose.Velocity `json:"spreadVelocity"`
	ClimateRiskFactor *float64           `json:"climateRiskFactor"`
}
// #endregion wire-shape

// #region validation
// toAnalysis validates the decoded wire shape and converts it. Every
// field the contract marks required must be present with an in-range
// value; similarityScore alone may be omitted.
func (w *wireAnalysis) toAnalysis() (diagnose.Analysis, error) {
	switch {
	case w.ExpectedLoss == nil:
		return diagnose.Analysis{}, missingField("expectedLoss")
	case w.ConfidenceScore == nil:
		return diagnose.Analysis{}, missingField("confidenceScore")
	case w.RiskLevel == nil:
		return diagnose.Analysis{}, missingField("riskLevel")
	case w.Recommendations == nil:
		return diagnose.Analysis{}, missingField("recommendations")
	case w.DiseaseDetected == nil:
		return diagnose.Analysis{}, missingField("diseaseDetected")
	case w.DiseaseDescription == nil:
		return diagnose.Analysis{}, missingField("diseaseDescription")
	case w.SymptomlessStress == nil:
		return diagnose.Analysis{}, missingField("symptomlessStressDetected")
	case w.StressProbability == nil:
		return diagnose.Analysis{}, missingField("stressProbability")
	case w.TreatmentUrgency == nil:
		return diagnose.Analysis{}, missingField("treatmentUrgency")
	case w.Metrics == nil:
		return diagnose.Analysis{}, missingField("detailedMetrics")
	case w.Metrics.LeafCoverage == nil:
		return diagnose.Analysis{}, missingField("detailedMetrics.leafCoverage")
	case w.Metrics.SpreadVelocity == nil:
		return diagnose.Analysis{}, missingField("detailedMetrics.spreadVelocity")
	case w.Metrics.ClimateRiskFactor == nil:
		return diagnose.Analysis{}, missingField("detailedMetrics.climateRiskFactor")
	}

	if *w.ExpectedLoss < 0 {
		return diagnose.Analysis{}, fmt.Errorf("expectedLoss %d out of range", *w.ExpectedLoss)
	}
	if *w.ConfidenceScore < 0 || *w.ConfidenceScore > 1 {
		return diagnose.Analysis{}, fmt.Errorf("confidenceScore %v out of range", *w.ConfidenceScore)
	}
	if *w.StressProbability < 0 || *w.StressProbability > 100 {
		return diagnose.Analysis{}, fmt.Errorf("stressProbability %d out of range", *w.StressProbability)
	}
	switch *w.RiskLevel {
	case diagnose.RiskLow, diagnose.RiskMedium, diagnose.RiskHigh:
	default:
		return diagnose.Analysis{}, fmt.Errorf("unknown riskLevel %q", *w.RiskLevel)
	}
	switch *w.TreatmentUrgency {
	case diagnose.UrgencyImmediate, diagnose.UrgencyWithin48h, diagnose.UrgencyMonitoring:
	default:
		return diagnose.Analysis{}, fmt.Errorf("unknown treatmentUrgency %q", *w.TreatmentUrgency)
	}
	switch *w.Metrics.SpreadVelocity {
	case diagnose.VelocityAggressive, diagnose.VelocityModerate, diagnose.VelocitySlow:
	default:
		return diagnose.Analysis{}, fmt.Errorf("unknown spreadVelocity %q", *w.Metrics.SpreadVelocity)
	}

	a := diagnose.Analysis{
		ExpectedLoss:       *w.ExpectedLoss,
		ConfidenceScore:    *w.ConfidenceScore,
		RiskLevel:          *w.RiskLevel,
		Recommendations:    *w.Recommendations,
		DiseaseDetected:    *w.DiseaseDetected,
		DiseaseDescription: *w.DiseaseDescription,
		SymptomlessStress:  *w.SymptomlessStress,
		StressProbability:  *w.StressProbability,
		TreatmentUrgency:   *w.TreatmentUrgency,
		Metrics: diagnose.Metrics{
			LeafCoverage:      *w.Metrics.LeafCoverage,
			SpreadVelocity:    *w.Metrics.SpreadVelocity,
			ClimateRiskFactor: *w.Metrics.ClimateRiskFactor,
		},
	}
	if w.SimilarityScore != nil {
		if *w.SimilarityScore < 0 || *w.SimilarityScore > 1 {
			return diagnose.Analysis{}, fmt.Errorf("similarityScore %v out of range", *w.SimilarityScore)
		}
		a.SimilarityScore = *w.SimilarityScore
	}
	return a, nil
}

func missingField(name string) error {
	return fmt.Errorf("response missing required field %q", name)
}
// #endregion validation
