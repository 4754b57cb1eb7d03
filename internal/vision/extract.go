package vision

// #region thresholds
// Pixel classification thresholds. All channel math runs on the 0-255
// scale of the resampled grid.
const (
	greenMargin  = 1.1 // g must beat both r and b by 10%
	redOverGreen = 1.3
	redOverBlue  = 1.2

	// Rec. 601 luma below this counts a sample as necrotic tissue.
	necroticLuminance = 70.0

	// Edge detection walks the grid at a coarser stride and flags
	// red-channel jumps above edgeJump between consecutive samples.
	edgeStride = 4
	edgeJump   = 40

	// Densities divide by these so typical field photos land mid-range
	// instead of pinning to the extremes.
	varianceScale  = 255.0
	edgeSaturation = 0.25

	// Central zone bounds: the middle 50% of each axis.
	centerLo = GridSize / 4
	centerHi = GridSize * 3 / 4
)
// #endregion thresholds

// #region defaults
// DefaultFeatures is the stand-in vector used when no image is
// available, shaped like a healthy leaf so downstream scoring stays
// meaningful.
func DefaultFeatures() Features {
	return Features{
		Greenness:       0.8,
		Variance:        0.1,
		NecroticDensity: 0.05,
		Redness:         0.02,
		EdgeDensity:     0.1,
		ZonalIntegrity:  0.9,
	}
}
// #endregion defaults

// #region extract
// Extract measures the six feature components from a resampled grid.
// The walk is a single fixed-order pass, so identical grids always
// produce bit-identical vectors. A nil grid yields DefaultFeatures.
func Extract(g *Grid) Features {
	if g == nil {
		return DefaultFeatures()
	}

	var greenCount, redCount, darkCount int
	var centerGreen, peripheryGreen int
	var diffSum int

	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			p := g.At(x, y)
			r, gc, b := float64(p.R), float64(p.G), float64(p.B)

			if gc > r*greenMargin && gc > b*greenMargin {
				greenCount++
				if x >= centerLo && x < centerHi && y >= centerLo && y < centerHi {
					centerGreen++
				} else {
					peripheryGreen++
				}
			}
			if r > gc*redOverGreen && r > b*redOverBlue {
				redCount++
			}
			if 0.299*r+0.587*gc+0.114*b < necroticLuminance {
				darkCount++
			}
			diffSum += absInt(int(p.R)-int(p.G)) + absInt(int(p.G)-int(p.B))
		}
	}

	edges, comparisons := 0, 0
	for y := 0; y < GridSize; y += edgeStride {
		prev := -1
		for x := 0; x < GridSize; x += edgeStride {
			cur := int(g.At(x, y).R)
			if prev >= 0 {
				comparisons++
				if absInt(cur-prev) > edgeJump {
					edges++
				}
			}
			prev = cur
		}
	}

	total := float64(GridSize * GridSize)
	f := Features{
		Greenness:       clamp01(float64(greenCount) / total),
		Variance:        clamp01(float64(diffSum) / (total * varianceScale)),
		NecroticDensity: clamp01(float64(darkCount) / total),
		Redness:         clamp01(float64(redCount) / total),
		ZonalIntegrity:  1.0,
	}
	if comparisons > 0 {
		f.EdgeDensity = clamp01(float64(edges) / (float64(comparisons) * edgeSaturation))
	}
	if peripheryGreen > 0 {
		f.ZonalIntegrity = clamp01(float64(centerGreen) / float64(peripheryGreen))
	}
	return f
}
// #endregion extract

// #region helpers
func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
// #endregion helpers
