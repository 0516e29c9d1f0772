package app

import (
	"context"
	"fmt"

	"recon-engine/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type reconService struct {
	store    core.LedgerStore
	sync     core.SyncService
	detector core.ConflictDetector
	resolver core.ConflictResolver
	rollup   core.RollupService
	alerts   core.AlertEngine
	policy   core.ResolutionPolicy
	log      *logrus.Logger
}

// Options tune service construction beyond the defaults.
type Options struct {
	// Policy is the resolution policy applied during integration
	// passes. Defaults to Merge, the only policy that never discards
	// financial data.
	Policy core.ResolutionPolicy
	// Matcher overrides the description similarity heuristic.
	Matcher core.SimilarityMatcher
	Log     *logrus.Logger
}

// NewReconService wires the full engine over one pool. Services are
// explicit objects constructed per tenant context by the caller; there
// is no process-wide state.
func NewReconService(pool *pgxpool.Pool, opts Options) ReconService {
	if opts.Policy == "" {
		opts.Policy = core.Merge
	}
	if opts.Matcher == nil {
		opts.Matcher = core.SubstringMatcher{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	store := core.NewLedgerStore(pool)
	adapters := core.NewAdapters(store, opts.Policy == core.KeepManual, opts.Matcher, opts.Log)

	return &reconService{
		store:    store,
		sync:     core.NewSyncService(pool, adapters, opts.Log),
		detector: core.NewConflictDetector(store, opts.Matcher),
		resolver: core.NewConflictResolver(store, opts.Log),
		rollup:   core.NewRollupService(pool),
		alerts:   core.NewAlertEngine(pool, store),
		policy:   opts.Policy,
		log:      opts.Log,
	}
}

// RunIntegrationPass runs the phases strictly in order: each phase's
// output is the next phase's required input. Every phase is idempotent
// or side-effect-free, so an abandoned or failed pass is safe to re-run
// from the top.
func (s *reconService) RunIntegrationPass(ctx context.Context, tenantID string) *PassReport {
	report := &PassReport{TenantID: tenantID}
	fail := func(phase string, err error) {
		report.PhaseErrors = append(report.PhaseErrors, fmt.Sprintf("%s: %v", phase, err))
		s.log.WithError(err).WithFields(logrus.Fields{
			"tenant": tenantID,
			"phase":  phase,
		}).Error("integration pass phase failed")
	}

	syncReport, err := s.sync.SyncSettled(ctx, tenantID)
	report.Sync = syncReport
	if err != nil {
		fail("sync", err)
	}

	candidates, err := s.detector.FindConflicts(ctx, tenantID)
	if err != nil {
		fail("detect", err)
	}
	report.Conflicts = len(candidates)

	report.Resolution = s.resolver.Resolve(ctx, tenantID, candidates, s.policy)

	summary, err := s.rollup.RecomputeAll(ctx, tenantID)
	if err != nil {
		fail("rollup", err)
	} else {
		report.Rollup = summary
	}

	fresh, err := s.alerts.Scan(ctx, tenantID)
	if err != nil {
		fail("alerts", err)
	} else {
		report.FreshAlerts = fresh
	}

	s.log.WithFields(logrus.Fields{
		"tenant":    tenantID,
		"appended":  report.Sync.Appended,
		"absorbed":  report.Sync.Absorbed,
		"conflicts": report.Conflicts,
		"alerts":    len(report.FreshAlerts),
		"errors":    len(report.PhaseErrors),
	}).Info("integration pass complete")

	return report
}

func (s *reconService) SyncSettled(ctx context.Context, tenantID string) (core.SyncReport, error) {
	return s.sync.SyncSettled(ctx, tenantID)
}

func (s *reconService) FindConflicts(ctx context.Context, tenantID string) ([]core.ConflictCandidate, error) {
	return s.detector.FindConflicts(ctx, tenantID)
}

func (s *reconService) ResolveConflicts(ctx context.Context, tenantID string, policy core.ResolutionPolicy) (*ResolutionResult, error) {
	candidates, err := s.detector.FindConflicts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	report := s.resolver.Resolve(ctx, tenantID, candidates, policy)
	return &ResolutionResult{Candidates: candidates, Report: report}, nil
}

func (s *reconService) RecomputeRollups(ctx context.Context, tenantID string) (*core.RollupSummary, error) {
	return s.rollup.RecomputeAll(ctx, tenantID)
}

func (s *reconService) ScanAlerts(ctx context.Context, tenantID string) ([]core.SmartAlert, error) {
	return s.alerts.Scan(ctx, tenantID)
}

func (s *reconService) RecentAlerts(ctx context.Context, tenantID string) ([]core.SmartAlert, error) {
	return s.alerts.Recent(ctx, tenantID)
}

func (s *reconService) MarkAlertRead(ctx context.Context, tenantID, alertID string) error {
	return s.alerts.MarkRead(ctx, tenantID, alertID)
}

func (s *reconService) MarkAlertResolved(ctx context.Context, tenantID, alertID string) error {
	return s.alerts.MarkResolved(ctx, tenantID, alertID)
}
