package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedgerStore keeps entries in memory with the same idempotency
// contract as the real store.
type fakeLedgerStore struct {
	entries []LedgerEntry
}

func (f *fakeLedgerStore) Append(_ context.Context, entry LedgerEntry) (bool, error) {
	for _, e := range f.entries {
		if e.TenantID == entry.TenantID && e.ReferenceID == entry.ReferenceID && e.ReferenceType == entry.ReferenceType {
			return false, nil
		}
	}
	f.entries = append(f.entries, entry)
	return true, nil
}

func (f *fakeLedgerStore) List(_ context.Context, tenantID string, filter LedgerFilter) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, e := range f.entries {
		if e.TenantID != tenantID {
			continue
		}
		if filter.Direction != nil && e.Direction != *filter.Direction {
			continue
		}
		if filter.ReferenceType != nil && e.ReferenceType != *filter.ReferenceType {
			continue
		}
		if filter.Category != nil && e.Category != *filter.Category {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeLedgerStore) RemoveByProvenance(_ context.Context, tenantID, referenceID string, refType ReferenceType) (bool, error) {
	for i, e := range f.entries {
		if e.TenantID == tenantID && e.ReferenceID == referenceID && e.ReferenceType == refType {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerStore) SumSigned(_ context.Context, tenantID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			total = total.Add(e.SignedAmount())
		}
	}
	return total, nil
}

func (f *fakeLedgerStore) NetCashFlow(_ context.Context, tenantID string, _, _ time.Time) (decimal.Decimal, error) {
	return f.SumSigned(context.Background(), tenantID)
}

func TestCategoryMap_Resolve(t *testing.T) {
	m := DefaultExpenseCategories()
	assert.Equal(t, CategoryRent, m.Resolve("إيجار المحل"))
	assert.Equal(t, CategoryUtilities, m.Resolve("كهرباء ومياه"))
	assert.Equal(t, CategoryMarketing, m.Resolve("دعاية وإعلان"))
	assert.Equal(t, CategoryPayroll, m.Resolve("مرتبات"))
	assert.Equal(t, CategoryOther, m.Resolve("some new label"))
	assert.Equal(t, CategoryOther, m.Resolve(""))
}

func TestExpenseAdapter_TagsAndClassifies(t *testing.T) {
	store := &fakeLedgerStore{}
	adapter := NewExpenseAdapter(store, AdapterConfig{Categories: DefaultExpenseCategories()})

	appended, err := adapter.OnSettled(context.Background(), ExpenseRecord{
		ID:            "exp-1",
		TenantID:      "t1",
		Date:          time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Category:      "إيجار المحل",
		Description:   "إيجار يناير",
		Amount:        decimal.RequireFromString("500.00"),
		PaymentMethod: PaymentBank,
		Status:        StatusPaid,
	})
	require.NoError(t, err)
	assert.True(t, appended)

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, "[expense-system] إيجار يناير", e.Description)
	assert.Equal(t, CategoryRent, e.Category)
	assert.Equal(t, Expense, e.Direction)
	assert.Equal(t, RefExpense, e.ReferenceType)
	assert.Equal(t, "exp-1", e.ReferenceID)
	assert.Equal(t, "expense_system", e.Metadata["source"])
	assert.Equal(t, "إيجار المحل", e.Metadata["original_category"])
	assert.Equal(t, "true", e.Metadata["auto_synced"])
}

func TestExpenseAdapter_RepeatedSettleIsAbsorbed(t *testing.T) {
	store := &fakeLedgerStore{}
	adapter := NewExpenseAdapter(store, AdapterConfig{Categories: DefaultExpenseCategories()})
	rec := ExpenseRecord{
		ID: "exp-1", TenantID: "t1",
		Date:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("500.00"),
	}

	first, err := adapter.OnSettled(context.Background(), rec)
	require.NoError(t, err)
	second, err := adapter.OnSettled(context.Background(), rec)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Len(t, store.entries, 1)
}

func TestExpenseAdapter_MissingFieldsSkip(t *testing.T) {
	adapter := NewExpenseAdapter(&fakeLedgerStore{}, AdapterConfig{})
	ctx := context.Background()
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("10.00")

	_, err := adapter.OnSettled(ctx, ExpenseRecord{TenantID: "t1", Date: date, Amount: amount})
	assert.True(t, errors.Is(err, ErrSkipRecord), "missing id should skip")

	_, err = adapter.OnSettled(ctx, ExpenseRecord{ID: "e1", TenantID: "t1", Amount: amount})
	assert.True(t, errors.Is(err, ErrSkipRecord), "missing date should skip")

	_, err = adapter.OnSettled(ctx, ExpenseRecord{ID: "e1", TenantID: "t1", Date: date})
	assert.True(t, errors.Is(err, ErrSkipRecord), "zero amount should skip")
}

func TestExpenseAdapter_SuppressionSkipsManualEquivalent(t *testing.T) {
	store := &fakeLedgerStore{}
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	// A manual rent payment is already on the books.
	_, err := store.Append(context.Background(), LedgerEntry{
		TenantID: "t1", Date: day, Direction: Expense, Category: CategoryRent,
		Amount: decimal.RequireFromString("500.00"), Description: "إيجار يناير",
		ReferenceID: "cash-1", ReferenceType: RefManual,
	})
	require.NoError(t, err)

	adapter := NewExpenseAdapter(store, AdapterConfig{
		Categories:            DefaultExpenseCategories(),
		SuppressManualMatches: true,
	})
	appended, err := adapter.OnSettled(context.Background(), ExpenseRecord{
		ID: "exp-1", TenantID: "t1", Date: day,
		Category: "إيجار المحل", Description: "إيجار يناير",
		Amount: decimal.RequireFromString("500.00"),
	})
	require.NoError(t, err)
	assert.False(t, appended, "expense matching a manual entry must not be ledgered")
	assert.Len(t, store.entries, 1)

	// An unrelated expense still syncs.
	appended, err = adapter.OnSettled(context.Background(), ExpenseRecord{
		ID: "exp-2", TenantID: "t1", Date: day.AddDate(0, 0, 5),
		Category: "دعاية وإعلان", Description: "حملة فيسبوك",
		Amount: decimal.RequireFromString("300.00"),
	})
	require.NoError(t, err)
	assert.True(t, appended)
}

func TestCheckAdapter_DirectionFollowsParty(t *testing.T) {
	store := &fakeLedgerStore{}
	adapter := NewCheckAdapter(store, AdapterConfig{Categories: DefaultLedgerCategories()})
	cleared := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := adapter.OnSettled(context.Background(), CheckRecord{
		ID: "chk-1", TenantID: "t1", PartyType: PartyCustomer, PartyID: "cust-1",
		DueDate: cleared, Amount: decimal.RequireFromString("320.00"),
		Status: StatusCleared, ClearedAt: &cleared,
	})
	require.NoError(t, err)
	_, err = adapter.OnSettled(context.Background(), CheckRecord{
		ID: "chk-2", TenantID: "t1", PartyType: PartySupplier, PartyID: "supp-1",
		DueDate: cleared, Amount: decimal.RequireFromString("600.00"),
		Status: StatusCleared, ClearedAt: &cleared,
	})
	require.NoError(t, err)

	require.Len(t, store.entries, 2)
	assert.Equal(t, Income, store.entries[0].Direction)
	assert.Equal(t, CategorySales, store.entries[0].Category)
	assert.Equal(t, Expense, store.entries[1].Direction)
	assert.Equal(t, CategoryPurchases, store.entries[1].Category)
	assert.Equal(t, PaymentCheck, store.entries[0].PaymentMethod)
}

func TestAdapter_OnUnsettledRemovesOwnProvenanceOnly(t *testing.T) {
	store := &fakeLedgerStore{}
	expense := NewExpenseAdapter(store, AdapterConfig{Categories: DefaultExpenseCategories()})
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := expense.OnSettled(context.Background(), ExpenseRecord{
		ID: "exp-1", TenantID: "t1", Date: day, Amount: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	// A sales adapter cannot remove the expense entry: same id, wrong type.
	sales := NewSalesAdapter(store, AdapterConfig{Categories: DefaultLedgerCategories()})
	require.NoError(t, sales.OnUnsettled(context.Background(), "t1", "exp-1"))
	assert.Len(t, store.entries, 1)

	require.NoError(t, expense.OnUnsettled(context.Background(), "t1", "exp-1"))
	assert.Empty(t, store.entries)

	// Removing an already-absent key stays a no-op.
	require.NoError(t, expense.OnUnsettled(context.Background(), "t1", "exp-1"))
}

func TestSignedAmount(t *testing.T) {
	in := LedgerEntry{Direction: Income, Amount: decimal.RequireFromString("100.00")}
	out := LedgerEntry{Direction: Expense, Amount: decimal.RequireFromString("40.00")}
	assert.True(t, in.SignedAmount().Equal(decimal.RequireFromString("100.00")))
	assert.True(t, out.SignedAmount().Equal(decimal.RequireFromString("-40.00")))
}
