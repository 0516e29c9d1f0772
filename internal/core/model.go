package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// Category is the ledger's closed classification set. Subsystem-specific
// labels are mapped into this set by each source adapter; anything the
// adapter cannot map lands in CategoryOther rather than being dropped.
type Category string

const (
	CategorySales     Category = "sales"
	CategoryPurchases Category = "purchases"
	CategoryPayroll   Category = "payroll"
	CategoryUtilities Category = "utilities"
	CategoryRent      Category = "rent"
	CategoryMarketing Category = "marketing"
	CategoryOther     Category = "other"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentBank  PaymentMethod = "bank"
	PaymentCard  PaymentMethod = "card"
	PaymentCheck PaymentMethod = "check"
)

// ReferenceType identifies which subsystem produced a ledger entry.
// Together with ReferenceID it forms the provenance key; the pair is
// unique per tenant and is the store's idempotency guarantee.
type ReferenceType string

const (
	RefManual       ReferenceType = "manual"
	RefExpense      ReferenceType = "expense_system"
	RefSales        ReferenceType = "sales_system"
	RefPurchases    ReferenceType = "purchase_system"
	RefInstallments ReferenceType = "installment_system"
	RefChecks       ReferenceType = "check_system"
	RefPayroll      ReferenceType = "payroll_system"
)

// LedgerEntry is one atomic recorded cash movement. Amount is always
// non-negative; Direction carries the sign semantics.
type LedgerEntry struct {
	ID            int               `json:"id"`
	TenantID      string            `json:"tenant_id"`
	Date          time.Time         `json:"date"`
	Direction     Direction         `json:"direction"`
	Category      Category          `json:"category"`
	Subcategory   string            `json:"subcategory"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	ReferenceID   string            `json:"reference_id"`
	ReferenceType ReferenceType     `json:"reference_type"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// SignedAmount returns the amount with income positive and expense negative.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == Expense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// ConflictCandidate pairs a manually entered ledger entry with the
// subsystem entries suspected of recording the same real-world event.
// Candidates are advisory and produced fresh on each detection pass;
// they are never persisted.
type ConflictCandidate struct {
	Manual      LedgerEntry   `json:"manual"`
	Matches     []LedgerEntry `json:"matches"`
	Suggestions []string      `json:"suggestions"`
}

// ResolutionPolicy selects how detected conflicts are eliminated.
type ResolutionPolicy string

const (
	// KeepSystem removes every manual entry that has at least one
	// detected conflict, trusting the subsystem of record.
	KeepSystem ResolutionPolicy = "keep_system"
	// KeepManual suppresses future auto-sync of subsystem events that
	// already have a manual equivalent. Existing subsystem entries are
	// not deleted retroactively.
	KeepManual ResolutionPolicy = "keep_manual"
	// Merge deletes nothing; provenance tags in descriptions keep both
	// entries distinguishable to a reviewer. This is the safe default.
	Merge ResolutionPolicy = "merge"
)

// ParsePolicy validates a policy string from configuration or CLI input.
func ParsePolicy(s string) (ResolutionPolicy, bool) {
	switch ResolutionPolicy(s) {
	case KeepSystem, KeepManual, Merge:
		return ResolutionPolicy(s), true
	}
	return "", false
}

// EnhancedCustomer is a disposable per-customer projection, recomputed
// wholesale from the source tables on every rollup pass. CurrentBalance
// is the sum of pending installments and pending checks: committed but
// uncollected obligations, not a running ledger balance.
type EnhancedCustomer struct {
	CustomerID          string          `json:"customer_id"`
	TenantID            string          `json:"tenant_id"`
	Name                string          `json:"name"`
	TotalPurchases      decimal.Decimal `json:"total_purchases"`
	PendingInstallments decimal.Decimal `json:"pending_installments"`
	PendingChecks       decimal.Decimal `json:"pending_checks"`
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	LoyaltyPoints       int64           `json:"loyalty_points"`
	LastSaleDate        *time.Time      `json:"last_sale_date,omitempty"`
	RecomputedAt        time.Time       `json:"recomputed_at"`
}

// EnhancedSupplier is the supplier-side projection, symmetric with
// EnhancedCustomer: balances come from pending obligations to the
// supplier, never from hand edits.
type EnhancedSupplier struct {
	SupplierID     string          `json:"supplier_id"`
	TenantID       string          `json:"tenant_id"`
	Name           string          `json:"name"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	PendingChecks  decimal.Decimal `json:"pending_checks"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LastPurchase   *time.Time      `json:"last_purchase,omitempty"`
	RecomputedAt   time.Time       `json:"recomputed_at"`
}

type AlertType string

const (
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
	AlertInfo    AlertType = "info"
	AlertSuccess AlertType = "success"
)

type AlertCategory string

const (
	AlertCatInventory AlertCategory = "inventory"
	AlertCatFinancial AlertCategory = "financial"
	AlertCatCustomers AlertCategory = "customers"
	AlertCatSales     AlertCategory = "sales"
	AlertCatSystem    AlertCategory = "system"
)

type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

// SmartAlert is a derived, time-stamped notice produced by the alert
// engine. ReadAt and ResolvedAt are set by external user action only,
// never by the engine.
type SmartAlert struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	Type           AlertType     `json:"type"`
	Category       AlertCategory `json:"category"`
	Title          string        `json:"title"`
	Message        string        `json:"message"`
	Priority       AlertPriority `json:"priority"`
	ActionRequired bool          `json:"action_required"`
	ActionTarget   string        `json:"action_target,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// ── Source subsystem records ──────────────────────────────────────────────────

// Settlement statuses used across the subsystem tables.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusCleared = "cleared"
)

type CustomerRecord struct {
	ID       string
	TenantID string
	Name     string
	Phone    string
}

type SupplierRecord struct {
	ID       string
	TenantID string
	Name     string
	Phone    string
}

// CashEntry is a manual cash-register entry. It is ledgered with
// ReferenceType manual the moment it is recorded.
type CashEntry struct {
	ID            string
	TenantID      string
	Date          time.Time
	Direction     Direction
	Category      string
	Description   string
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
}

type ExpenseRecord struct {
	ID            string
	TenantID      string
	Date          time.Time
	Category      string
	Description   string
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Status        string
}

type SaleRecord struct {
	ID            string
	TenantID      string
	CustomerID    string
	Date          time.Time
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Status        string
}

type PurchaseRecord struct {
	ID            string
	TenantID      string
	SupplierID    string
	Date          time.Time
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Status        string
}

type InstallmentRecord struct {
	ID         string
	TenantID   string
	CustomerID string
	DueDate    time.Time
	Amount     decimal.Decimal
	Status     string
	PaidDate   *time.Time
}

// PartyType distinguishes which side of the business a check belongs to.
const (
	PartyCustomer = "customer"
	PartySupplier = "supplier"
)

type CheckRecord struct {
	ID        string
	TenantID  string
	PartyType string
	PartyID   string
	DueDate   time.Time
	Amount    decimal.Decimal
	Status    string
	ClearedAt *time.Time
}

type PayrollRecord struct {
	ID       string
	TenantID string
	Employee string
	PayDate  time.Time
	NetPay   decimal.Decimal
	Status   string
}

// ProductStock is the slice of the products table the alert engine and
// the rollup aggregator need.
type ProductStock struct {
	ID           string
	TenantID     string
	Name         string
	Quantity     int
	MinQuantity  int
	PurchaseCost decimal.Decimal
}
