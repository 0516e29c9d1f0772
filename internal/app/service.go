package app

import (
	"context"

	"recon-engine/internal/core"
)

// ReconService is the single interface the CLI and the daemon call. It
// decouples presentation from the reconciliation engine; implementations
// contain no display logic.
type ReconService interface {
	// RunIntegrationPass executes the full sequential pass for a
	// tenant: sync settled subsystem events, detect conflicts, resolve
	// them under the configured policy, recompute rollups, scan alerts.
	// Phase failures are absorbed into the report; the pass never
	// propagates a crash into its caller.
	RunIntegrationPass(ctx context.Context, tenantID string) *PassReport

	// SyncSettled runs only the sync phase.
	SyncSettled(ctx context.Context, tenantID string) (core.SyncReport, error)

	// FindConflicts runs only the detection phase. Advisory output;
	// nothing is mutated.
	FindConflicts(ctx context.Context, tenantID string) ([]core.ConflictCandidate, error)

	// ResolveConflicts detects and then resolves under the given policy.
	ResolveConflicts(ctx context.Context, tenantID string, policy core.ResolutionPolicy) (*ResolutionResult, error)

	// RecomputeRollups rewrites the customer and supplier projections.
	RecomputeRollups(ctx context.Context, tenantID string) (*core.RollupSummary, error)

	// ScanAlerts evaluates the alert rules and returns the fresh alerts.
	ScanAlerts(ctx context.Context, tenantID string) ([]core.SmartAlert, error)

	// RecentAlerts returns the bounded retained alert list, newest first.
	RecentAlerts(ctx context.Context, tenantID string) ([]core.SmartAlert, error)

	// MarkAlertRead and MarkAlertResolved stamp an alert on user action.
	MarkAlertRead(ctx context.Context, tenantID, alertID string) error
	MarkAlertResolved(ctx context.Context, tenantID, alertID string) error
}

// PassReport is the outcome of one integration pass. PhaseErrors carry
// the failures that were absorbed rather than propagated.
type PassReport struct {
	TenantID    string                `json:"tenant_id"`
	Sync        core.SyncReport       `json:"sync"`
	Conflicts   int                   `json:"conflicts"`
	Resolution  core.ResolutionReport `json:"resolution"`
	Rollup      *core.RollupSummary   `json:"rollup,omitempty"`
	FreshAlerts []core.SmartAlert     `json:"fresh_alerts,omitempty"`
	PhaseErrors []string              `json:"phase_errors,omitempty"`
}

// ResolutionResult is returned by ResolveConflicts.
type ResolutionResult struct {
	Candidates []core.ConflictCandidate `json:"candidates"`
	Report     core.ResolutionReport    `json:"report"`
}
