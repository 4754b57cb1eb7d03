package diagnose

import "github.com/verdantlabs/leafsense/internal/vision"

// #region profile
// FeatureKey names one component of the visual feature vector.
type FeatureKey string

const (
	FeatGreenness FeatureKey = "greenness"
	FeatVariance  FeatureKey = "variance"
	FeatNecrotic  FeatureKey = "necroticDensity"
	FeatRedness   FeatureKey = "redness"
	FeatEdge      FeatureKey = "edgeDensity"
	FeatZonal     FeatureKey = "zonalIntegrity"
)

// featureOrder fixes the iteration order during scoring so sums stay
// bit-stable across runs.
var featureOrder = []FeatureKey{
	FeatGreenness, FeatVariance, FeatNecrotic, FeatRedness, FeatEdge, FeatZonal,
}

// Profile maps a known disease signature onto signed feature weights.
// Positive weights reward high feature values, negative weights reward
// low ones. LossModifier scales the expected-loss estimate when the
// profile is the confirmed match.
type Profile struct {
	Name         string
	Description  string
	Weights      map[FeatureKey]float64
	Actions      []string
	LossModifier float64
}

func featureValue(f vision.Features, k FeatureKey) float64 {
	switch k {
	case FeatGreenness:
		return f.Greenness
	case FeatVariance:
		return f.Variance
	case FeatNecrotic:
		return f.NecroticDensity
	case FeatRedness:
		return f.Redness
	case FeatEdge:
		return f.EdgeDensity
	case FeatZonal:
		return f.ZonalIntegrity
	}
	return 0
}
// #endregion profile

// #region knowledge-base
// Profiles is the fixed diagnostic knowledge base. Order matters: when
// two profiles score identically the earlier entry wins.
var Profiles = []Profile{
	{
		Name:        "Late Blight",
		Description: "Water-soaked dark lesions spreading from leaf edges inward, often with pale halos. Thrives in cool wet conditions and can collapse a field within days.",
		Weights: map[FeatureKey]float64{
			FeatNecrotic:  1.0,
			FeatGreenness: -0.6,
			FeatVariance:  0.5,
			FeatZonal:     -0.4,
		},
		Actions: []string{
			"Apply a systemic fungicide (chlorothalonil or mancozeb) within 24 hours",
			"Remove and destroy infected plants, do not compost",
			"Stop overhead irrigation immediately",
			"Alert neighboring growers, spores travel several kilometers",
		},
		LossModifier: 2.0,
	},
	{
		Name:        "Early Blight",
		Description: "Concentric brown rings forming a target pattern on older leaves, usually starting low on the plant.",
		Weights: map[FeatureKey]float64{
			FeatNecrotic:  0.7,
			FeatEdge:      0.6,
			FeatVariance:  0.4,
			FeatGreenness: -0.3,
		},
		Actions: []string{
			"Apply a protectant fungicide at 7-10 day intervals",
			"Prune the lowest leaves to improve airflow",
			"Mulch the soil line to stop spore splash",
			"Rotate away from solanaceous crops next season",
		},
		LossModifier: 1.5,
	},
	{
		Name:        "Rust",
		Description: "Orange to reddish-brown pustules scattered across the leaf that rub off on contact.",
		Weights: map[FeatureKey]float64{
			FeatRedness:   1.0,
			FeatVariance:  0.5,
			FeatGreenness: -0.3,
		},
		Actions: []string{
			"Apply a sulfur or triazole fungicide at first sign",
			"Remove heavily pustuled leaves in dry weather",
			"Avoid working the rows while foliage is wet",
		},
		LossModifier: 1.4,
	},
	{
		Name:        "Powdery Mildew",
		Description: "White powdery coating that mutes leaf color and blocks light without immediate tissue death.",
		Weights: map[FeatureKey]float64{
			FeatGreenness: -0.7,
			FeatVariance:  0.3,
			FeatEdge:      0.3,
		},
		Actions: []string{
			"Apply potassium bicarbonate or sulfur spray",
			"Thin the canopy to raise light and airflow",
			"Cut back on nitrogen, soft growth invites mildew",
		},
		LossModifier: 1.2,
	},
	{
		Name:        "Bacterial Leaf Spot",
		Description: "Small angular water-soaked spots with yellow halos that merge into ragged dead patches.",
		Weights: map[FeatureKey]float64{
			FeatNecrotic:  0.8,
			FeatVariance:  0.6,
			FeatEdge:      0.5,
			FeatGreenness: -0.2,
		},
		Actions: []string{
			"Apply a copper-based bactericide, rotating to avoid resistance",
			"Remove infected debris from the field",
			"Disinfect tools between rows",
			"Switch to drip irrigation to keep foliage dry",
		},
		LossModifier: 1.6,
	},
	{
		Name:        "Anthracnose",
		Description: "Sunken dark lesions concentrated at the leaf center and along veins, spreading outward in humid weather.",
		Weights: map[FeatureKey]float64{
			FeatNecrotic: 0.7,
			FeatZonal:    -0.6,
			FeatEdge:     0.5,
		},
		Actions: []string{
			"Apply a copper or strobilurin fungicide",
			"Cut out infected tissue well below visible lesions",
			"Keep fruit and foliage off the soil with stakes or trellis",
		},
		LossModifier: 1.7,
	},
	{
		Name:        "Nitrogen Deficiency",
		Description: "Uniform yellowing that starts in older leaves and works upward. Growth slows before any tissue dies.",
		Weights: map[FeatureKey]float64{
			FeatGreenness: -1.0,
			FeatRedness:   0.4,
			FeatEdge:      -0.3,
			FeatNecrotic:  -0.3,
		},
		Actions: []string{
			"Side-dress with a nitrogen-rich fertilizer or composted manure",
			"Confirm with a soil test before repeat applications",
			"Split applications to limit leaching losses",
		},
		LossModifier: 0.8,
	},
	{
		Name:        "Mosaic Virus",
		Description: "Mottled light and dark patches with crinkled leaf texture. Spread by aphids and contaminated tools.",
		Weights: map[FeatureKey]float64{
			FeatVariance:  0.9,
			FeatEdge:      0.7,
			FeatGreenness: -0.4,
		},
		Actions: []string{
			"Remove and destroy infected plants, there is no cure",
			"Control aphids with insecticidal soap",
			"Disinfect tools and hands after touching symptomatic plants",
			"Plant resistant varieties next season",
		},
		LossModifier: 1.3,
	},
}
// #endregion knowledge-base
