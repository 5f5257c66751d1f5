package builds

import (
	"context"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/logger"
)

// Decision is the outcome of resolving one build ancestor.
type Decision int

const (
	// Pulled means the image is available; older ancestors need nothing
	Pulled Decision = iota
	// MustBuild means the pull failed just now
	MustBuild
	// FailedPermanently means an earlier pull in this run already failed
	FailedPermanently
)

func (d Decision) String() string {
	switch d {
	case Pulled:
		return "pulled"
	case MustBuild:
		return "must-build"
	case FailedPermanently:
		return "failed-permanently"
	default:
		return "unknown"
	}
}

// pullOutcome is the per-run record of pull attempts. A container is in at
// most one of the two sets.
type pullOutcome struct {
	pulled map[*catalog.Container]bool
	failed map[*catalog.Container]bool
}

func newPullOutcome() *pullOutcome {
	return &pullOutcome{
		pulled: make(map[*catalog.Container]bool),
		failed: make(map[*catalog.Container]bool),
	}
}

// resolveAncestor decides whether ancestor has to be built. It pulls at most
// once per container per run.
func (r *resolution) resolveAncestor(ctx context.Context, ancestor *catalog.Container) Decision {
	switch {
	case r.outcome.failed[ancestor]:
		return FailedPermanently
	case r.outcome.pulled[ancestor]:
		return Pulled
	}

	if err := r.pull(ctx, ancestor); err != nil {
		logger.FromContext(ctx).DebugContext(ctx, "ancestor pull failed", "container", ancestor.Name, "error", err)
		return MustBuild
	}
	return Pulled
}
