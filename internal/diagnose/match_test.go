package diagnose

import (
	"math"
	"testing"

	"github.com/verdantlabs/leafsense/internal/vision"
)

func textbookLateBlight() vision.Features {
	return vision.Features{
		Greenness:       0.1,
		Variance:        0.6,
		NecroticDensity: 0.7,
		Redness:         0.05,
		EdgeDensity:     0.1,
		ZonalIntegrity:  0.3,
	}
}

func TestMatchProfileLateBlightSignature(t *testing.T) {
	m := MatchProfile(textbookLateBlight())

	if !m.Confirmed() {
		t.Fatalf("expected a confirmed match, got score %v", m.Score)
	}
	if m.Profile.Name != "Late Blight" {
		t.Fatalf("matched %q, want Late Blight", m.Profile.Name)
	}
	// (0.7*1.0 + 0.9*0.6 + 0.6*0.5 + 0.7*0.4) / 2.5
	if want := 1.82 / 2.5; math.Abs(m.Score-want) > 1e-9 {
		t.Fatalf("score = %v, want %v", m.Score, want)
	}
}

func TestMatchProfileDefaultVectorUnconfirmed(t *testing.T) {
	m := MatchProfile(vision.DefaultFeatures())

	if m.Confirmed() {
		t.Fatalf("default vector confirmed %q, want no confirmation", m.Profile.Name)
	}
	if m.Score <= 0 || m.Score > acceptThreshold {
		t.Fatalf("score = %v, want within (0, %v]", m.Score, acceptThreshold)
	}
}

func TestMatchScoresStayNormalized(t *testing.T) {
	vectors := []vision.Features{
		{},
		{Greenness: 1, Variance: 1, NecroticDensity: 1, Redness: 1, EdgeDensity: 1, ZonalIntegrity: 1},
		vision.DefaultFeatures(),
		textbookLateBlight(),
		{Greenness: 0.33, Variance: 0.5, NecroticDensity: 0.5, Redness: 0.5, EdgeDensity: 0.5, ZonalIntegrity: 0.5},
	}
	for _, f := range vectors {
		for i := range Profiles {
			s := profileScore(&Profiles[i], f)
			if s < 0 || s > 1+1e-9 {
				t.Errorf("profile %q score %v out of [0,1] for %+v", Profiles[i].Name, s, f)
			}
		}
	}
}

func TestMatchTieKeepsEarliestProfile(t *testing.T) {
	twins := []Profile{
		{Name: "first", Weights: map[FeatureKey]float64{FeatNecrotic: 1.0}, LossModifier: 1},
		{Name: "second", Weights: map[FeatureKey]float64{FeatNecrotic: 1.0}, LossModifier: 1},
	}
	m := matchAgainst(twins, vision.Features{NecroticDensity: 0.9})

	if !m.Confirmed() || m.Profile.Name != "first" {
		t.Fatalf("tie resolved to %+v, want the first declared profile", m.Profile)
	}
}

func TestMatchEmptyKnowledgeBase(t *testing.T) {
	m := matchAgainst(nil, textbookLateBlight())
	if m.Confirmed() || m.Score != 0 {
		t.Fatalf("empty knowledge base produced %+v", m)
	}
}

func TestProfileScoreEmptyWeights(t *testing.T) {
	p := Profile{Name: "hollow"}
	if s := profileScore(&p, textbookLateBlight()); s != 0 {
		t.Fatalf("score = %v, want 0 for empty weights", s)
	}
}
