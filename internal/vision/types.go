package vision

// #region features
// Features is the fixed-size numeric summary of a resampled leaf image.
// Every component is normalized to [0,1]; ZonalIntegrity saturates at 1.
// Computed per analysis call and never persisted on its own.
type Features struct {
	Greenness       float64 `json:"greenness"`
	Variance        float64 `json:"variance"`
	NecroticDensity float64 `json:"necroticDensity"`
	Redness         float64 `json:"redness"`
	EdgeDensity     float64 `json:"edgeDensity"`
	ZonalIntegrity  float64 `json:"zonalIntegrity"`
}
// #endregion features

// #region pixel
// Pixel is one RGB sample on the measurement grid.
type Pixel struct {
	R, G, B uint8
}
// #endregion pixel
