package orchestrator

// #region imports
import (
	"context"

	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/remote"
)

// #endregion

// #region source

// Source identifies which path produced an analysis.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// #endregion

// #region outcome

// Outcome is the result of one analysis decision. Callers that only
// need the verdict read Analysis; callers that persist or audit also
// record where it came from.
type Outcome struct {
	Analysis diagnose.Analysis
	Source   Source
	Reason   string // why the remote path was not used; empty on remote success
}

// #endregion

// #region interfaces

// RemoteAnalyzer abstracts the cloud analysis call.
type RemoteAnalyzer interface {
	Analyze(ctx context.Context, req remote.Request) (diagnose.Analysis, error)
}

// #endregion
