package app_test

import (
	"context"
	"os"
	"testing"

	"recon-engine/internal/app"
	"recon-engine/internal/core"
	"recon-engine/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const testTenant = "test"

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := db.NewPoolFromURL(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE ledger_entries, smart_alerts, enhanced_customers, enhanced_suppliers,
			cash_entries, expenses, sales, purchases, installments, checks,
			payroll_runs, products, customers, suppliers CASCADE;

		INSERT INTO customers (tenant_id, id, name) VALUES
		    ('test', 'cust-1', 'Ahmed Hassan');
		INSERT INTO suppliers (tenant_id, id, name) VALUES
		    ('test', 'supp-1', 'Delta Trading');
		INSERT INTO products (tenant_id, id, name, quantity, min_quantity, purchase_cost) VALUES
		    ('test', 'prod-1', 'Cooking Oil 1L', 3, 5, 42.50);
		INSERT INTO cash_entries (tenant_id, id, entry_date, direction, category, description, amount, payment_method) VALUES
		    ('test', 'cash-1', '2024-01-10', 'expense', 'إيجار المحل', 'إيجار يناير', 500.00, 'cash');
		INSERT INTO expenses (tenant_id, id, expense_date, category, description, amount, payment_method, status) VALUES
		    ('test', 'exp-1', '2024-01-10', 'إيجار المحل', 'إيجار يناير', 500.00, 'bank', 'paid');
		INSERT INTO sales (tenant_id, id, customer_id, sale_date, total, payment_method, status) VALUES
		    ('test', 'sale-1', 'cust-1', '2024-01-08', 1200.00, 'cash', 'paid');
		INSERT INTO installments (tenant_id, id, customer_id, due_date, amount, status, paid_date) VALUES
		    ('test', 'inst-1', 'cust-1', '2024-01-20', 200.00, 'pending', NULL);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func TestReconService_FullPass(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := app.NewReconService(pool, app.Options{})
	ctx := context.Background()

	report := svc.RunIntegrationPass(ctx, testTenant)
	if len(report.PhaseErrors) != 0 {
		t.Fatalf("Pass reported phase errors: %v", report.PhaseErrors)
	}
	if report.Sync.Appended != 3 {
		t.Fatalf("Expected 3 appended entries (cash, expense, sale), got %+v", report.Sync)
	}
	if report.Conflicts != 1 {
		t.Errorf("Expected the rent conflict to be detected, got %d candidates", report.Conflicts)
	}
	if report.Rollup == nil || report.Rollup.Customers != 1 {
		t.Errorf("Expected 1 customer rollup, got %+v", report.Rollup)
	}
	if len(report.FreshAlerts) == 0 {
		t.Error("Expected at least the low-stock alert")
	}
}

func TestReconService_RepeatedPassesNoDoubleCounting(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := app.NewReconService(pool, app.Options{})
	store := core.NewLedgerStore(pool)
	ctx := context.Background()

	svc.RunIntegrationPass(ctx, testTenant)
	firstTotal, err := store.SumSigned(ctx, testTenant)
	if err != nil {
		t.Fatalf("SumSigned failed: %v", err)
	}
	firstBalance := customerBalance(t, pool, "cust-1")

	for i := 0; i < 3; i++ {
		report := svc.RunIntegrationPass(ctx, testTenant)
		if len(report.PhaseErrors) != 0 {
			t.Fatalf("Pass %d reported phase errors: %v", i, report.PhaseErrors)
		}
		if report.Sync.Appended != 0 {
			t.Errorf("Pass %d appended %d entries, expected 0", i, report.Sync.Appended)
		}
	}

	finalTotal, err := store.SumSigned(ctx, testTenant)
	if err != nil {
		t.Fatalf("SumSigned failed: %v", err)
	}
	if !finalTotal.Equal(firstTotal) {
		t.Errorf("Ledger total drifted across passes: %s -> %s", firstTotal, finalTotal)
	}
	if finalBalance := customerBalance(t, pool, "cust-1"); !finalBalance.Equal(firstBalance) {
		t.Errorf("Customer balance drifted across passes: %s -> %s", firstBalance, finalBalance)
	}
}

func TestReconService_KeepSystemPassRemovesManualDuplicate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := app.NewReconService(pool, app.Options{Policy: core.KeepSystem})
	store := core.NewLedgerStore(pool)
	ctx := context.Background()

	report := svc.RunIntegrationPass(ctx, testTenant)
	if len(report.PhaseErrors) != 0 {
		t.Fatalf("Pass reported phase errors: %v", report.PhaseErrors)
	}
	if report.Resolution.RemovedManual != 1 {
		t.Fatalf("Expected keep_system to remove the manual rent entry, got %+v", report.Resolution)
	}

	manualRef := core.RefManual
	manual, err := store.List(ctx, testTenant, core.LedgerFilter{ReferenceType: &manualRef})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(manual) != 0 {
		t.Errorf("Manual entry still present after keep_system: %+v", manual)
	}
}

func customerBalance(t *testing.T, pool *pgxpool.Pool, customerID string) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	err := pool.QueryRow(context.Background(),
		`SELECT current_balance FROM enhanced_customers WHERE tenant_id = $1 AND customer_id = $2`,
		testTenant, customerID).Scan(&balance)
	if err != nil {
		t.Fatalf("Failed to read customer balance: %v", err)
	}
	return balance
}
