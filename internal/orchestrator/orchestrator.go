package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log"

	"github.com/verdantlabs/leafsense/internal/connectivity"
	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/remote"
	"github.com/verdantlabs/leafsense/internal/vision"
)

// #endregion

// #region orchestrator-struct

// Orchestrator decides the cloud-vs-local path for every analysis and
// collapses both into a single Outcome shape.
type Orchestrator struct {
	remote  RemoteAnalyzer // nil when no credential is configured
	checker connectivity.Checker
}

// #endregion

// #region constructor

// NewOrchestrator wires the analysis decision point. Pass a nil
// analyzer to pin every outcome to the local heuristic.
func NewOrchestrator(analyzer RemoteAnalyzer, checker connectivity.Checker) *Orchestrator {
	return &Orchestrator{
		remote:  analyzer,
		checker: checker,
	}
}

// #endregion

// #region remote-available

// RemoteAvailable reports whether the remote path can be attempted:
// a client must be configured and the connectivity probe must pass.
func (o *Orchestrator) RemoteAvailable(ctx context.Context) bool {
	return o.remote != nil && o.checker.Online(ctx)
}

// #endregion

// #region analyze

// Analyze produces exactly one analysis for the given image and crop.
// The remote service is tried first when reachable; any remote failure
// falls back to the local heuristic and never reaches the caller.
func (o *Orchestrator) Analyze(ctx context.Context, image []byte, cropType string, sens diagnose.Sensitivity) Outcome {
	var reason string
	switch {
	case o.remote == nil:
		reason = "no remote credential configured"
	case !o.checker.Online(ctx):
		reason = "offline"
	default:
		analysis, err := o.remote.Analyze(ctx, remote.BuildRequest(cropType, sens, image))
		if err == nil {
			log.Printf("[ENGINE] remote verdict: crop=%s disease=%q loss=%d",
				cropType, analysis.DiseaseDetected, analysis.ExpectedLoss)
			return Outcome{Analysis: analysis, Source: SourceRemote}
		}
		reason = fmt.Sprintf("remote analysis failed: %v", err)
		log.Printf("[ENGINE] %s, falling back to local", reason)
	}

	analysis := o.local(image, sens)
	log.Printf("[ENGINE] local verdict: crop=%s disease=%q loss=%d",
		cropType, analysis.DiseaseDetected, analysis.ExpectedLoss)

	return Outcome{Analysis: analysis, Source: SourceLocal, Reason: reason}
}

// #endregion

// #region local-path

// local runs the on-device pipeline. A missing or undecodable image
// degrades to the default feature vector rather than an error.
func (o *Orchestrator) local(image []byte, sens diagnose.Sensitivity) diagnose.Analysis {
	features := vision.DefaultFeatures()
	if len(image) > 0 {
		grid, err := vision.Decode(image)
		if err != nil {
			log.Printf("[ENGINE] image decode failed, using default features: %v", err)
		} else {
			features = vision.Extract(grid)
		}
	}
	return diagnose.Assess(features, sens)
}

// #endregion
