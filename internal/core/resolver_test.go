package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConflictPair(t *testing.T, store *fakeLedgerStore) []ConflictCandidate {
	t.Helper()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	manual := LedgerEntry{
		TenantID: "t1", Date: day, Direction: Expense, Category: CategoryRent,
		Amount: decimal.RequireFromString("500.00"), Description: "إيجار يناير",
		ReferenceID: "cash-1", ReferenceType: RefManual,
	}
	system := LedgerEntry{
		TenantID: "t1", Date: day, Direction: Expense, Category: CategoryRent,
		Amount: decimal.RequireFromString("500.00"), Description: "[expense-system] إيجار يناير",
		ReferenceID: "exp-1", ReferenceType: RefExpense,
	}
	for _, e := range []LedgerEntry{manual, system} {
		_, err := store.Append(context.Background(), e)
		require.NoError(t, err)
	}
	return findConflictsIn([]LedgerEntry{manual}, []LedgerEntry{system}, SubstringMatcher{})
}

func TestResolve_KeepSystemRemovesManualEntry(t *testing.T) {
	store := &fakeLedgerStore{}
	candidates := seedConflictPair(t, store)
	require.Len(t, candidates, 1)

	resolver := NewConflictResolver(store, nil)
	report := resolver.Resolve(context.Background(), "t1", candidates, KeepSystem)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.RemovedManual)
	assert.Zero(t, report.FailedRemovals)

	require.Len(t, store.entries, 1)
	assert.Equal(t, RefExpense, store.entries[0].ReferenceType)
}

func TestResolve_KeepSystemTwiceIsIdempotent(t *testing.T) {
	store := &fakeLedgerStore{}
	candidates := seedConflictPair(t, store)
	resolver := NewConflictResolver(store, nil)

	first := resolver.Resolve(context.Background(), "t1", candidates, KeepSystem)
	second := resolver.Resolve(context.Background(), "t1", candidates, KeepSystem)

	assert.Equal(t, 1, first.RemovedManual)
	assert.Zero(t, second.RemovedManual)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.entries, 1)
}

func TestResolve_MergeLeavesBothEntries(t *testing.T) {
	store := &fakeLedgerStore{}
	candidates := seedConflictPair(t, store)
	resolver := NewConflictResolver(store, nil)

	report := resolver.Resolve(context.Background(), "t1", candidates, Merge)

	assert.Zero(t, report.RemovedManual)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, store.entries, 2)
}

func TestResolve_KeepManualLeavesLedgerUntouched(t *testing.T) {
	store := &fakeLedgerStore{}
	candidates := seedConflictPair(t, store)
	resolver := NewConflictResolver(store, nil)

	report := resolver.Resolve(context.Background(), "t1", candidates, KeepManual)

	assert.Zero(t, report.RemovedManual)
	assert.Len(t, store.entries, 2)
	assert.Equal(t, 1, report.Skipped)
}

func TestResolve_UnknownPolicyFallsBackToMerge(t *testing.T) {
	store := &fakeLedgerStore{}
	candidates := seedConflictPair(t, store)
	resolver := NewConflictResolver(store, nil)

	report := resolver.Resolve(context.Background(), "t1", candidates, ResolutionPolicy("delete_everything"))

	assert.Equal(t, Merge, report.Policy)
	assert.Len(t, store.entries, 2)
}

func TestParsePolicy(t *testing.T) {
	for raw, want := range map[string]ResolutionPolicy{
		"keep_manual": KeepManual,
		"keep_system": KeepSystem,
		"merge":       Merge,
	} {
		got, ok := ParsePolicy(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got)
	}

	_, ok := ParsePolicy("discard")
	assert.False(t, ok)
}
