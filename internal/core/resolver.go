package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ResolutionReport summarizes one resolver pass.
type ResolutionReport struct {
	Policy         ResolutionPolicy `json:"policy"`
	Candidates     int              `json:"candidates"`
	RemovedManual  int              `json:"removed_manual"`
	Skipped        int              `json:"skipped"`
	FailedRemovals int              `json:"failed_removals"`
}

// ConflictResolver applies a resolution policy to detected conflicts.
//
// Resolution is best-effort: a failure mid-pass leaves the ledger no
// worse than before, because the only mutation is removal by provenance
// key, which is idempotent. Re-running after a partial failure removes
// only what is still present.
type ConflictResolver interface {
	Resolve(ctx context.Context, tenantID string, candidates []ConflictCandidate, policy ResolutionPolicy) ResolutionReport
}

type conflictResolver struct {
	store LedgerStore
	log   *logrus.Logger
}

// NewConflictResolver constructs a resolver over the given store.
func NewConflictResolver(store LedgerStore, log *logrus.Logger) ConflictResolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &conflictResolver{store: store, log: log}
}

func (r *conflictResolver) Resolve(ctx context.Context, tenantID string, candidates []ConflictCandidate, policy ResolutionPolicy) ResolutionReport {
	report := ResolutionReport{Policy: policy, Candidates: len(candidates)}

	switch policy {
	case KeepSystem:
		for _, c := range candidates {
			removed, err := r.store.RemoveByProvenance(ctx, tenantID, c.Manual.ReferenceID, RefManual)
			if err != nil {
				// Best effort: log and continue; the pass is safe to re-run.
				report.FailedRemovals++
				r.log.WithError(err).WithFields(logrus.Fields{
					"tenant":    tenantID,
					"reference": c.Manual.ReferenceID,
				}).Warn("keep_system: failed to remove manual entry")
				continue
			}
			if removed {
				report.RemovedManual++
			} else {
				report.Skipped++
			}
		}

	case KeepManual:
		// Nothing to delete here. The policy takes effect in the source
		// adapters, which check for a manual equivalent before syncing.
		report.Skipped = len(candidates)

	case Merge:
		// Deliberately no deletion: both entries stay visible and the
		// provenance tags keep them distinguishable to a reviewer.
		report.Skipped = len(candidates)

	default:
		r.log.WithField("policy", string(policy)).Warn("unknown resolution policy, treating as merge")
		report.Policy = Merge
		report.Skipped = len(candidates)
	}

	return report
}
