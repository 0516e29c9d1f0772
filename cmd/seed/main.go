// seed loads a demo tenant with enough subsystem data to exercise a
// full integration pass: a manual cash book that overlaps the expense
// system, settled and pending records in every subsystem, and stock
// levels that trip the inventory alert.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"
	"os"

	"recon-engine/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tenant := os.Getenv("RECON_TENANT_ID")
	if tenant == "" {
		tenant = "default"
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	exec := func(label, sql string) {
		if _, err := tx.Exec(ctx, sql, tenant); err != nil {
			log.Fatalf("Failed to %s: %v", label, err)
		}
	}

	log.Printf("Clearing tenant %s...", tenant)
	for _, table := range []string{
		"ledger_entries", "smart_alerts", "enhanced_customers", "enhanced_suppliers",
		"cash_entries", "expenses", "sales", "purchases", "installments",
		"checks", "payroll_runs", "products", "customers", "suppliers",
	} {
		exec("clear "+table, "DELETE FROM "+pgx.Identifier{table}.Sanitize()+" WHERE tenant_id = $1")
	}

	log.Println("Seeding customers and suppliers...")
	exec("seed customers", `
		INSERT INTO customers (tenant_id, id, name, phone) VALUES
		    ($1, 'cust-1', 'Ahmed Hassan',  '0100000001'),
		    ($1, 'cust-2', 'Mona Adel',     '0100000002'),
		    ($1, 'cust-3', 'Karim Mostafa', '0100000003')`)
	exec("seed suppliers", `
		INSERT INTO suppliers (tenant_id, id, name, phone) VALUES
		    ($1, 'supp-1', 'Delta Trading',   '0220000001'),
		    ($1, 'supp-2', 'Nile Wholesale',  '0220000002')`)

	log.Println("Seeding products (one below minimum stock)...")
	exec("seed products", `
		INSERT INTO products (tenant_id, id, name, quantity, min_quantity, purchase_cost) VALUES
		    ($1, 'prod-1', 'Cooking Oil 1L', 3,  5,  42.50),
		    ($1, 'prod-2', 'Rice 5kg',       40, 10, 120.00),
		    ($1, 'prod-3', 'Sugar 1kg',      25, 8,  18.75)`)

	log.Println("Seeding cash book and expense system (with an overlap)...")
	// The rent appears both as a manual cash entry and as a paid expense
	// on the same day so a detection run has something to find.
	exec("seed cash entries", `
		INSERT INTO cash_entries (tenant_id, id, entry_date, direction, category, description, amount, payment_method) VALUES
		    ($1, 'cash-1', CURRENT_DATE - 5, 'expense', 'إيجار المحل',  'إيجار يناير',         500.00, 'cash'),
		    ($1, 'cash-2', CURRENT_DATE - 4, 'income',  'مبيعات',       'مبيعات يوم الثلاثاء', 850.00, 'cash'),
		    ($1, 'cash-3', CURRENT_DATE - 2, 'expense', 'كهرباء ومياه', 'فاتورة الكهرباء',     175.25, 'cash')`)
	exec("seed expenses", `
		INSERT INTO expenses (tenant_id, id, expense_date, category, description, amount, payment_method, status) VALUES
		    ($1, 'exp-1', CURRENT_DATE - 5, 'إيجار المحل',   'إيجار يناير',   500.00, 'bank', 'paid'),
		    ($1, 'exp-2', CURRENT_DATE - 3, 'دعاية وإعلان',  'حملة فيسبوك',   300.00, 'card', 'paid'),
		    ($1, 'exp-3', CURRENT_DATE - 1, 'مشتريات بضاعة', 'بضاعة إضافية',  950.00, 'cash', 'pending')`)

	log.Println("Seeding sales and purchases...")
	exec("seed sales", `
		INSERT INTO sales (tenant_id, id, customer_id, sale_date, total, payment_method, status) VALUES
		    ($1, 'sale-1', 'cust-1', CURRENT_DATE - 6, 1200.00, 'cash', 'paid'),
		    ($1, 'sale-2', 'cust-2', CURRENT_DATE - 3, 640.50,  'card', 'paid'),
		    ($1, 'sale-3', 'cust-1', CURRENT_DATE - 1, 300.00,  'cash', 'pending')`)
	exec("seed purchases", `
		INSERT INTO purchases (tenant_id, id, supplier_id, purchase_date, total, payment_method, status) VALUES
		    ($1, 'pur-1', 'supp-1', CURRENT_DATE - 10, 2400.00, 'bank', 'paid'),
		    ($1, 'pur-2', 'supp-2', CURRENT_DATE - 2,  780.00,  'cash', 'pending')`)

	log.Println("Seeding installments, checks and payroll...")
	// One installment is already overdue and one check falls due in two
	// days; both feed the alert scan.
	exec("seed installments", `
		INSERT INTO installments (tenant_id, id, customer_id, due_date, amount, status, paid_date) VALUES
		    ($1, 'inst-1', 'cust-1', CURRENT_DATE - 7,  100.00, 'paid',    CURRENT_DATE - 7),
		    ($1, 'inst-2', 'cust-1', CURRENT_DATE - 2,  200.00, 'pending', NULL),
		    ($1, 'inst-3', 'cust-2', CURRENT_DATE + 20, 150.00, 'pending', NULL)`)
	exec("seed checks", `
		INSERT INTO checks (tenant_id, id, party_type, party_id, due_date, amount, status, cleared_at) VALUES
		    ($1, 'chk-1', 'customer', 'cust-1', CURRENT_DATE - 4, 50.00,  'cleared', CURRENT_DATE - 4),
		    ($1, 'chk-2', 'customer', 'cust-2', CURRENT_DATE + 2, 320.00, 'pending', NULL),
		    ($1, 'chk-3', 'supplier', 'supp-1', CURRENT_DATE + 9, 600.00, 'pending', NULL)`)
	exec("seed payroll", `
		INSERT INTO payroll_runs (tenant_id, id, employee, pay_date, net_pay, status) VALUES
		    ($1, 'pay-1', 'Sara Ali',    CURRENT_DATE - 5, 4500.00, 'paid'),
		    ($1, 'pay-2', 'Omar Farouk', CURRENT_DATE - 5, 3800.00, 'paid')`)

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Printf("Seed complete for tenant %s.", tenant)
}
