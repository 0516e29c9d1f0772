package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CategoryMap translates a subsystem's own category vocabulary into the
// ledger's closed category set. Maps are passed in at construction so a
// new subsystem can register its vocabulary without touching adapter
// logic. Unknown labels resolve to CategoryOther: under-classifying
// beats dropping the transaction.
type CategoryMap map[string]Category

func (m CategoryMap) Resolve(label string) Category {
	if c, ok := m[label]; ok {
		return c
	}
	return CategoryOther
}

// ErrSkipRecord marks a source record that cannot be ledgered (missing
// amount or date). Callers log the skip and continue with the batch.
var ErrSkipRecord = errors.New("source record missing required field")

// SourceEvent is the adapter-neutral shape of a settled subsystem
// record, ready to become a ledger entry.
type SourceEvent struct {
	ReferenceID   string
	Date          time.Time
	Direction     Direction
	RawCategory   string
	Subcategory   string
	Description   string
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Metadata      map[string]string
}

// SourceAdapter writes ledger entries for exactly one reference type.
// OnSettled is idempotent: the store absorbs repeated appends for the
// same provenance key. When suppression is enabled (keep_manual policy)
// an expense event that already has a manual equivalent is skipped
// instead of ledgered.
type SourceAdapter struct {
	store      LedgerStore
	refType    ReferenceType
	tag        string
	categories CategoryMap
	matcher    SimilarityMatcher
	suppress   bool
	log        *logrus.Logger
}

// AdapterConfig carries the per-subsystem construction knobs.
type AdapterConfig struct {
	Categories CategoryMap
	// SuppressManualMatches enables the keep_manual policy: before
	// ledgering an expense event, look for a manual entry recording the
	// same payment and skip the sync if one exists.
	SuppressManualMatches bool
	Matcher               SimilarityMatcher
	Log                   *logrus.Logger
}

func newSourceAdapter(store LedgerStore, refType ReferenceType, tag string, cfg AdapterConfig) *SourceAdapter {
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = SubstringMatcher{}
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SourceAdapter{
		store:      store,
		refType:    refType,
		tag:        tag,
		categories: cfg.Categories,
		matcher:    matcher,
		suppress:   cfg.SuppressManualMatches,
		log:        log,
	}
}

// ReferenceType returns the single provenance type this adapter owns.
func (a *SourceAdapter) ReferenceType() ReferenceType { return a.refType }

// OnSettled ledgers a settled subsystem event. Returns true when a new
// entry was appended, false when the event was absorbed (duplicate
// provenance key or manual-match suppression).
func (a *SourceAdapter) OnSettled(ctx context.Context, tenantID string, ev SourceEvent) (bool, error) {
	if ev.ReferenceID == "" {
		return false, fmt.Errorf("%w: reference id", ErrSkipRecord)
	}
	if ev.Date.IsZero() {
		return false, fmt.Errorf("%w: date (ref %s)", ErrSkipRecord, ev.ReferenceID)
	}
	if ev.Amount.IsZero() || ev.Amount.IsNegative() {
		return false, fmt.Errorf("%w: amount (ref %s)", ErrSkipRecord, ev.ReferenceID)
	}

	if a.suppress && ev.Direction == Expense {
		suppressed, err := a.hasManualEquivalent(ctx, tenantID, ev)
		if err != nil {
			return false, err
		}
		if suppressed {
			a.log.WithFields(logrus.Fields{
				"tenant":    tenantID,
				"reference": ev.ReferenceID,
				"source":    string(a.refType),
			}).Info("skipping auto-sync: manual equivalent exists")
			return false, nil
		}
	}

	meta := map[string]string{
		"source":            string(a.refType),
		"original_category": ev.RawCategory,
		"auto_synced":       "true",
	}
	for k, v := range ev.Metadata {
		meta[k] = v
	}

	entry := LedgerEntry{
		TenantID:      tenantID,
		Date:          ev.Date,
		Direction:     ev.Direction,
		Category:      a.categories.Resolve(ev.RawCategory),
		Subcategory:   ev.Subcategory,
		Amount:        ev.Amount,
		Description:   fmt.Sprintf("%s %s", a.tag, ev.Description),
		PaymentMethod: ev.PaymentMethod,
		ReferenceID:   ev.ReferenceID,
		ReferenceType: a.refType,
		Metadata:      meta,
	}
	return a.store.Append(ctx, entry)
}

// OnUnsettled reverses OnSettled when the originating record leaves its
// settled state. Removing an already-absent key is a no-op.
func (a *SourceAdapter) OnUnsettled(ctx context.Context, tenantID, referenceID string) error {
	if _, err := a.store.RemoveByProvenance(ctx, tenantID, referenceID, a.refType); err != nil {
		return fmt.Errorf("unsettle %s/%s: %w", a.refType, referenceID, err)
	}
	return nil
}

// hasManualEquivalent checks whether a manual expense entry already
// records this payment, using the same predicate the conflict detector
// applies.
func (a *SourceAdapter) hasManualEquivalent(ctx context.Context, tenantID string, ev SourceEvent) (bool, error) {
	expense := Expense
	manualRef := RefManual
	manual, err := a.store.List(ctx, tenantID, LedgerFilter{Direction: &expense, ReferenceType: &manualRef})
	if err != nil {
		return false, fmt.Errorf("manual-match check: %w", err)
	}
	candidate := LedgerEntry{
		Date:        ev.Date,
		Direction:   ev.Direction,
		Amount:      ev.Amount,
		Description: ev.Description,
	}
	for _, m := range manual {
		if entriesConflict(m, candidate, a.matcher) {
			return true, nil
		}
	}
	return false, nil
}

// ── Per-subsystem adapters ────────────────────────────────────────────────────

// CashRegisterAdapter ledgers manual cash-register entries. It owns the
// manual reference type; manual entries settle the moment they are
// recorded.
type CashRegisterAdapter struct{ base *SourceAdapter }

func NewCashRegisterAdapter(store LedgerStore, cfg AdapterConfig) *CashRegisterAdapter {
	// Manual entries are never suppressed against themselves.
	cfg.SuppressManualMatches = false
	return &CashRegisterAdapter{base: newSourceAdapter(store, RefManual, "[cash-register]", cfg)}
}

func (a *CashRegisterAdapter) OnSettled(ctx context.Context, rec CashEntry) (bool, error) {
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          rec.Date,
		Direction:     rec.Direction,
		RawCategory:   rec.Category,
		Subcategory:   rec.Category,
		Description:   rec.Description,
		Amount:        rec.Amount,
		PaymentMethod: rec.PaymentMethod,
	})
}

func (a *CashRegisterAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// ExpenseAdapter ledgers expense records once they transition to paid.
type ExpenseAdapter struct{ base *SourceAdapter }

func NewExpenseAdapter(store LedgerStore, cfg AdapterConfig) *ExpenseAdapter {
	return &ExpenseAdapter{base: newSourceAdapter(store, RefExpense, "[expense-system]", cfg)}
}

func (a *ExpenseAdapter) OnSettled(ctx context.Context, rec ExpenseRecord) (bool, error) {
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          rec.Date,
		Direction:     Expense,
		RawCategory:   rec.Category,
		Subcategory:   rec.Category,
		Description:   rec.Description,
		Amount:        rec.Amount,
		PaymentMethod: rec.PaymentMethod,
	})
}

func (a *ExpenseAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// SalesAdapter ledgers paid sales as income.
type SalesAdapter struct{ base *SourceAdapter }

func NewSalesAdapter(store LedgerStore, cfg AdapterConfig) *SalesAdapter {
	return &SalesAdapter{base: newSourceAdapter(store, RefSales, "[sales-system]", cfg)}
}

func (a *SalesAdapter) OnSettled(ctx context.Context, rec SaleRecord) (bool, error) {
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          rec.Date,
		Direction:     Income,
		RawCategory:   "sales",
		Subcategory:   "sale",
		Description:   fmt.Sprintf("sale %s", rec.ID),
		Amount:        rec.Total,
		PaymentMethod: rec.PaymentMethod,
		Metadata:      map[string]string{"customer_id": rec.CustomerID},
	})
}

func (a *SalesAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// PurchaseAdapter ledgers paid supplier purchases as expenses.
type PurchaseAdapter struct{ base *SourceAdapter }

func NewPurchaseAdapter(store LedgerStore, cfg AdapterConfig) *PurchaseAdapter {
	return &PurchaseAdapter{base: newSourceAdapter(store, RefPurchases, "[purchase-system]", cfg)}
}

func (a *PurchaseAdapter) OnSettled(ctx context.Context, rec PurchaseRecord) (bool, error) {
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          rec.Date,
		Direction:     Expense,
		RawCategory:   "purchases",
		Subcategory:   "purchase",
		Description:   fmt.Sprintf("purchase %s", rec.ID),
		Amount:        rec.Total,
		PaymentMethod: rec.PaymentMethod,
		Metadata:      map[string]string{"supplier_id": rec.SupplierID},
	})
}

func (a *PurchaseAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// InstallmentAdapter ledgers collected customer installments as income.
type InstallmentAdapter struct{ base *SourceAdapter }

func NewInstallmentAdapter(store LedgerStore, cfg AdapterConfig) *InstallmentAdapter {
	return &InstallmentAdapter{base: newSourceAdapter(store, RefInstallments, "[installment-system]", cfg)}
}

func (a *InstallmentAdapter) OnSettled(ctx context.Context, rec InstallmentRecord) (bool, error) {
	date := rec.DueDate
	if rec.PaidDate != nil {
		date = *rec.PaidDate
	}
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          date,
		Direction:     Income,
		RawCategory:   "sales",
		Subcategory:   "installment",
		Description:   fmt.Sprintf("installment %s", rec.ID),
		Amount:        rec.Amount,
		PaymentMethod: PaymentCash,
		Metadata:      map[string]string{"customer_id": rec.CustomerID},
	})
}

func (a *InstallmentAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// CheckAdapter ledgers cleared checks. Customer checks are income,
// supplier checks are expenses.
type CheckAdapter struct{ base *SourceAdapter }

func NewCheckAdapter(store LedgerStore, cfg AdapterConfig) *CheckAdapter {
	return &CheckAdapter{base: newSourceAdapter(store, RefChecks, "[check-system]", cfg)}
}

func (a *CheckAdapter) OnSettled(ctx context.Context, rec CheckRecord) (bool, error) {
	direction := Income
	rawCategory := "sales"
	if rec.PartyType == PartySupplier {
		direction = Expense
		rawCategory = "purchases"
	}
	date := rec.DueDate
	if rec.ClearedAt != nil {
		date = *rec.ClearedAt
	}
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          date,
		Direction:     direction,
		RawCategory:   rawCategory,
		Subcategory:   "check",
		Description:   fmt.Sprintf("check %s (%s)", rec.ID, rec.PartyType),
		Amount:        rec.Amount,
		PaymentMethod: PaymentCheck,
		Metadata:      map[string]string{"party_type": rec.PartyType, "party_id": rec.PartyID},
	})
}

func (a *CheckAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// PayrollAdapter ledgers paid payroll runs as payroll expenses.
type PayrollAdapter struct{ base *SourceAdapter }

func NewPayrollAdapter(store LedgerStore, cfg AdapterConfig) *PayrollAdapter {
	return &PayrollAdapter{base: newSourceAdapter(store, RefPayroll, "[payroll-system]", cfg)}
}

func (a *PayrollAdapter) OnSettled(ctx context.Context, rec PayrollRecord) (bool, error) {
	return a.base.OnSettled(ctx, rec.TenantID, SourceEvent{
		ReferenceID:   rec.ID,
		Date:          rec.PayDate,
		Direction:     Expense,
		RawCategory:   "payroll",
		Subcategory:   "salary",
		Description:   fmt.Sprintf("salary %s", rec.Employee),
		Amount:        rec.NetPay,
		PaymentMethod: PaymentBank,
	})
}

func (a *PayrollAdapter) OnUnsettled(ctx context.Context, tenantID, id string) error {
	return a.base.OnUnsettled(ctx, tenantID, id)
}

// DefaultExpenseCategories is the stock vocabulary mapping for the
// expense subsystem, including the Arabic labels the expense pages use.
// Callers can extend or replace it per tenant.
func DefaultExpenseCategories() CategoryMap {
	return CategoryMap{
		"rent":          CategoryRent,
		"إيجار المحل":   CategoryRent,
		"utilities":     CategoryUtilities,
		"كهرباء ومياه":  CategoryUtilities,
		"marketing":     CategoryMarketing,
		"دعاية وإعلان":  CategoryMarketing,
		"salaries":      CategoryPayroll,
		"مرتبات":        CategoryPayroll,
		"purchases":     CategoryPurchases,
		"مشتريات بضاعة": CategoryPurchases,
	}
}

// DefaultLedgerCategories maps the closed set onto itself for the
// subsystems whose vocabulary already is the ledger's.
func DefaultLedgerCategories() CategoryMap {
	return CategoryMap{
		"sales":     CategorySales,
		"purchases": CategoryPurchases,
		"payroll":   CategoryPayroll,
		"utilities": CategoryUtilities,
		"rent":      CategoryRent,
		"marketing": CategoryMarketing,
	}
}
