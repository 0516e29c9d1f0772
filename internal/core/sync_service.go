package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// SyncReport counts what one sync pass did per subsystem.
type SyncReport struct {
	Appended int `json:"appended"`
	Absorbed int `json:"absorbed"` // duplicate provenance keys or suppressed events
	Skipped  int `json:"skipped"`  // malformed records logged and passed over
}

func (r *SyncReport) add(other SyncReport) {
	r.Appended += other.Appended
	r.Absorbed += other.Absorbed
	r.Skipped += other.Skipped
}

// SyncService scans every subsystem table for settled records and
// drives the matching source adapter. The whole pass is retry-safe:
// every append is absorbed by the store's provenance key.
type SyncService interface {
	SyncSettled(ctx context.Context, tenantID string) (SyncReport, error)
}

// Adapters groups the per-subsystem writers. Each owns one reference
// type and never writes another's.
type Adapters struct {
	CashRegister *CashRegisterAdapter
	Expenses     *ExpenseAdapter
	Sales        *SalesAdapter
	Purchases    *PurchaseAdapter
	Installments *InstallmentAdapter
	Checks       *CheckAdapter
	Payroll      *PayrollAdapter
}

// NewAdapters wires the standard adapter set over one store. The
// expense adapter gets the expense vocabulary map; the rest map the
// ledger's own category names.
func NewAdapters(store LedgerStore, suppressManual bool, matcher SimilarityMatcher, log *logrus.Logger) Adapters {
	ledgerCfg := AdapterConfig{
		Categories:            DefaultLedgerCategories(),
		SuppressManualMatches: suppressManual,
		Matcher:               matcher,
		Log:                   log,
	}
	expenseCfg := ledgerCfg
	expenseCfg.Categories = DefaultExpenseCategories()

	return Adapters{
		CashRegister: NewCashRegisterAdapter(store, expenseCfg),
		Expenses:     NewExpenseAdapter(store, expenseCfg),
		Sales:        NewSalesAdapter(store, ledgerCfg),
		Purchases:    NewPurchaseAdapter(store, ledgerCfg),
		Installments: NewInstallmentAdapter(store, ledgerCfg),
		Checks:       NewCheckAdapter(store, ledgerCfg),
		Payroll:      NewPayrollAdapter(store, ledgerCfg),
	}
}

type syncService struct {
	pool     *pgxpool.Pool
	adapters Adapters
	log      *logrus.Logger
}

// NewSyncService constructs the sync phase over the pool and adapters.
func NewSyncService(pool *pgxpool.Pool, adapters Adapters, log *logrus.Logger) SyncService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &syncService{pool: pool, adapters: adapters, log: log}
}

// SyncSettled runs every subsystem scan. A malformed record is skipped
// and logged, never fatal to the batch; only infrastructure failures
// (query errors) abort a subsystem's scan, and the remaining subsystems
// still run.
func (s *syncService) SyncSettled(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	var errs []error

	steps := []struct {
		name string
		run  func(context.Context, string) (SyncReport, error)
	}{
		{"cash_register", s.syncCashEntries},
		{"expenses", s.syncExpenses},
		{"sales", s.syncSales},
		{"purchases", s.syncPurchases},
		{"installments", s.syncInstallments},
		{"checks", s.syncChecks},
		{"payroll", s.syncPayroll},
	}
	for _, step := range steps {
		sub, err := step.run(ctx, tenantID)
		report.add(sub)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			s.log.WithError(err).WithFields(logrus.Fields{
				"tenant":    tenantID,
				"subsystem": step.name,
			}).Error("sync step failed")
		}
	}
	return report, errors.Join(errs...)
}

// settle funnels one adapter call into the report, absorbing skip
// errors per the batch contract.
func (s *syncService) settle(report *SyncReport, tenantID, subsystem, refID string, appended bool, err error) error {
	if err != nil {
		if errors.Is(err, ErrSkipRecord) {
			report.Skipped++
			s.log.WithFields(logrus.Fields{
				"tenant":    tenantID,
				"subsystem": subsystem,
				"reference": refID,
			}).Warn("skipping malformed source record")
			return nil
		}
		return err
	}
	if appended {
		report.Appended++
	} else {
		report.Absorbed++
	}
	return nil
}

func (s *syncService) syncCashEntries(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, entry_date, direction, category, description, amount, payment_method
		FROM cash_entries WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []CashEntry
	for rows.Next() {
		var r CashEntry
		r.TenantID = tenantID
		if err := rows.Scan(&r.ID, &r.Date, &r.Direction, &r.Category, &r.Description, &r.Amount, &r.PaymentMethod); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.CashRegister.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "cash_register", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *syncService) syncExpenses(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, expense_date, category, description, amount, payment_method
		FROM expenses WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPaid)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []ExpenseRecord
	for rows.Next() {
		var r ExpenseRecord
		r.TenantID = tenantID
		r.Status = StatusPaid
		if err := rows.Scan(&r.ID, &r.Date, &r.Category, &r.Description, &r.Amount, &r.PaymentMethod); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.Expenses.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "expenses", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *syncService) syncSales(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, sale_date, total, payment_method
		FROM sales WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPaid)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []SaleRecord
	for rows.Next() {
		var r SaleRecord
		r.TenantID = tenantID
		r.Status = StatusPaid
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Date, &r.Total, &r.PaymentMethod); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.Sales.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "sales", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *syncService) syncPurchases(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, purchase_date, total, payment_method
		FROM purchases WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPaid)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []PurchaseRecord
	for rows.Next() {
		var r PurchaseRecord
		r.TenantID = tenantID
		r.Status = StatusPaid
		if err := rows.Scan(&r.ID, &r.SupplierID, &r.Date, &r.Total, &r.PaymentMethod); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.Purchases.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "purchases", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *syncService) syncInstallments(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, due_date, amount, paid_date
		FROM installments WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPaid)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []InstallmentRecord
	for rows.Next() {
		var r InstallmentRecord
		r.TenantID = tenantID
		r.Status = StatusPaid
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.DueDate, &r.Amount, &r.PaidDate); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.Installments.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "installments", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *syncService) syncChecks(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, party_type, party_id, due_date, amount, cleared_at
		FROM checks WHERE tenant_id = $1 AND status = $2`, tenantID, StatusCleared)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []CheckRecord
	for rows.Next() {
		var r CheckRecord
		r.TenantID = tenantID
		r.Status = StatusCleared
		if err := rows.Scan(&r.ID, &r.PartyType, &r.PartyID, &r.DueDate, &r.Amount, &r.ClearedAt); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.Checks.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "checks", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *syncService) syncPayroll(ctx context.Context, tenantID string) (SyncReport, error) {
	var report SyncReport
	rows, err := s.pool.Query(ctx, `
		SELECT id, employee, pay_date, net_pay
		FROM payroll_runs WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPaid)
	if err != nil {
		return report, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []PayrollRecord
	for rows.Next() {
		var r PayrollRecord
		r.TenantID = tenantID
		r.Status = StatusPaid
		if err := rows.Scan(&r.ID, &r.Employee, &r.PayDate, &r.NetPay); err != nil {
			return report, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	for _, r := range recs {
		appended, err := s.adapters.Payroll.OnSettled(ctx, r)
		if err := s.settle(&report, tenantID, "payroll", r.ID, appended, err); err != nil {
			return report, err
		}
	}
	return report, nil
}
