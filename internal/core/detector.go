package core

import (
	"context"
	"fmt"
)

// ConflictDetector finds probable duplicates between manually entered
// ledger entries and subsystem-sourced ones.
type ConflictDetector interface {
	FindConflicts(ctx context.Context, tenantID string) ([]ConflictCandidate, error)
}

type conflictDetector struct {
	store   LedgerStore
	matcher SimilarityMatcher
}

// NewConflictDetector constructs a detector over the given store. A nil
// matcher falls back to plain substring containment.
func NewConflictDetector(store LedgerStore, matcher SimilarityMatcher) ConflictDetector {
	if matcher == nil {
		matcher = SubstringMatcher{}
	}
	return &conflictDetector{store: store, matcher: matcher}
}

func (d *conflictDetector) FindConflicts(ctx context.Context, tenantID string) ([]ConflictCandidate, error) {
	expense := Expense
	manualRef := RefManual

	manual, err := d.store.List(ctx, tenantID, LedgerFilter{Direction: &expense, ReferenceType: &manualRef})
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: load manual entries: %w", err)
	}
	if len(manual) == 0 {
		return nil, nil
	}

	all, err := d.store.List(ctx, tenantID, LedgerFilter{Direction: &expense})
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: load expense entries: %w", err)
	}

	return findConflictsIn(manual, all, d.matcher), nil
}
