package diagnose

import (
	"math"

	"github.com/verdantlabs/leafsense/internal/vision"
)

// acceptThreshold is the normalized score a profile must exceed before
// it is reported as the detected disease.
const acceptThreshold = 0.45

// #region match-type
// Match is the outcome of scoring a feature vector against the
// knowledge base. Profile is nil unless the best score cleared the
// acceptance threshold; Score always carries the best normalized score
// so callers can report similarity even for unconfirmed vectors.
type Match struct {
	Profile *Profile
	Score   float64
}

// Confirmed reports whether a profile cleared the threshold.
func (m Match) Confirmed() bool {
	return m.Profile != nil
}
// #endregion match-type

// #region matching
// MatchProfile scores features against the knowledge base and returns
// the strictly best profile. Equal scores keep the earliest entry.
func MatchProfile(f vision.Features) Match {
	return matchAgainst(Profiles, f)
}

func matchAgainst(profiles []Profile, f vision.Features) Match {
	var best *Profile
	bestScore := -1.0
	for i := range profiles {
		if s := profileScore(&profiles[i], f); s > bestScore {
			bestScore = s
			best = &profiles[i]
		}
	}
	if bestScore < 0 {
		return Match{}
	}
	m := Match{Score: bestScore}
	if bestScore > acceptThreshold {
		m.Profile = best
	}
	return m
}
// #endregion matching

// #region scoring
// profileScore computes the normalized weighted agreement between a
// feature vector and one profile. Positive weights contribute f*w,
// negative weights contribute (1-f)*|w|, and the sum is divided by the
// total absolute weight so every score lands in [0,1].
func profileScore(p *Profile, f vision.Features) float64 {
	var sum, totalWeight float64
	for _, k := range featureOrder {
		w, ok := p.Weights[k]
		if !ok {
			continue
		}
		v := featureValue(f, k)
		if w > 0 {
			sum += v * w
		} else {
			sum += (1 - v) * -w
		}
		totalWeight += math.Abs(w)
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}
// #endregion scoring
