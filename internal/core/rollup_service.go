package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RollupSummary is the tenant-wide result of a full rollup pass.
type RollupSummary struct {
	Customers      int             `json:"customers"`
	Suppliers      int             `json:"suppliers"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
	RecomputedAt   time.Time       `json:"recomputed_at"`
}

// RollupService recomputes the derived customer and supplier
// projections from the source tables. It is read-only with respect to
// the ledger and the subsystem tables; the only writes are wholesale
// rewrites of the projection tables.
type RollupService interface {
	RecomputeCustomer(ctx context.Context, tenantID, customerID string) (*EnhancedCustomer, error)
	RecomputeSupplier(ctx context.Context, tenantID, supplierID string) (*EnhancedSupplier, error)
	RecomputeAll(ctx context.Context, tenantID string) (*RollupSummary, error)
}

type rollupService struct {
	pool *pgxpool.Pool
}

// NewRollupService constructs a RollupService backed by PostgreSQL.
func NewRollupService(pool *pgxpool.Pool) RollupService {
	return &rollupService{pool: pool}
}

func (s *rollupService) RecomputeCustomer(ctx context.Context, tenantID, customerID string) (*EnhancedCustomer, error) {
	data, err := s.loadCustomerData(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	ec := computeCustomerRollup(tenantID, customerID, data, time.Now())
	if err := s.upsertCustomerRollup(ctx, ec); err != nil {
		return nil, err
	}
	return &ec, nil
}

func (s *rollupService) RecomputeSupplier(ctx context.Context, tenantID, supplierID string) (*EnhancedSupplier, error) {
	data, err := s.loadSupplierData(ctx, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	es := computeSupplierRollup(tenantID, supplierID, data, time.Now())
	if err := s.upsertSupplierRollup(ctx, es); err != nil {
		return nil, err
	}
	return &es, nil
}

// RecomputeAll rewrites both projection tables wholesale for the
// tenant. The delete and re-insert happen in one transaction so readers
// never observe a half-rebuilt projection.
func (s *rollupService) RecomputeAll(ctx context.Context, tenantID string) (*RollupSummary, error) {
	customerIDs, err := s.collectIDs(ctx, tenantID, `
		SELECT id FROM customers WHERE tenant_id = $1
		UNION SELECT customer_id FROM sales WHERE tenant_id = $1
		UNION SELECT customer_id FROM installments WHERE tenant_id = $1`)
	if err != nil {
		return nil, fmt.Errorf("rollup: collect customer ids: %w", err)
	}
	supplierIDs, err := s.collectIDs(ctx, tenantID, `
		SELECT id FROM suppliers WHERE tenant_id = $1
		UNION SELECT supplier_id FROM purchases WHERE tenant_id = $1`)
	if err != nil {
		return nil, fmt.Errorf("rollup: collect supplier ids: %w", err)
	}

	now := time.Now()
	customers := make([]EnhancedCustomer, 0, len(customerIDs))
	for _, id := range customerIDs {
		data, err := s.loadCustomerData(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		customers = append(customers, computeCustomerRollup(tenantID, id, data, now))
	}
	suppliers := make([]EnhancedSupplier, 0, len(supplierIDs))
	for _, id := range supplierIDs {
		data, err := s.loadSupplierData(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, computeSupplierRollup(tenantID, id, data, now))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollup: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM enhanced_customers WHERE tenant_id = $1", tenantID); err != nil {
		return nil, fmt.Errorf("rollup: clear customer projections: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM enhanced_suppliers WHERE tenant_id = $1", tenantID); err != nil {
		return nil, fmt.Errorf("rollup: clear supplier projections: %w", err)
	}
	for _, ec := range customers {
		if err := insertCustomerRollup(ctx, tx, ec); err != nil {
			return nil, err
		}
	}
	for _, es := range suppliers {
		if err := insertSupplierRollup(ctx, tx, es); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rollup: commit: %w", err)
	}

	products, err := s.loadProducts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &RollupSummary{
		Customers:      len(customers),
		Suppliers:      len(suppliers),
		InventoryValue: computeInventoryValue(products),
		RecomputedAt:   now,
	}, nil
}

// ── Source loads ──────────────────────────────────────────────────────────────

func (s *rollupService) loadCustomerData(ctx context.Context, tenantID, customerID string) (CustomerSourceData, error) {
	var data CustomerSourceData

	var master CustomerRecord
	err := s.pool.QueryRow(ctx,
		"SELECT id, tenant_id, name, COALESCE(phone, '') FROM customers WHERE tenant_id = $1 AND id = $2",
		tenantID, customerID,
	).Scan(&master.ID, &master.TenantID, &master.Name, &master.Phone)
	switch {
	case err == nil:
		data.Master = &master
	case errors.Is(err, pgx.ErrNoRows):
		// Dangling reference: derived fields default to zero.
	default:
		return data, fmt.Errorf("rollup: load customer %s: %w", customerID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, sale_date, total, payment_method, status
		FROM sales WHERE tenant_id = $1 AND customer_id = $2`, tenantID, customerID)
	if err != nil {
		return data, fmt.Errorf("rollup: load sales for %s: %w", customerID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r SaleRecord
		r.TenantID = tenantID
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Date, &r.Total, &r.PaymentMethod, &r.Status); err != nil {
			return data, fmt.Errorf("rollup: scan sale: %w", err)
		}
		data.Sales = append(data.Sales, r)
	}
	if err := rows.Err(); err != nil {
		return data, fmt.Errorf("rollup: sales rows: %w", err)
	}

	instRows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, due_date, amount, status, paid_date
		FROM installments WHERE tenant_id = $1 AND customer_id = $2`, tenantID, customerID)
	if err != nil {
		return data, fmt.Errorf("rollup: load installments for %s: %w", customerID, err)
	}
	defer instRows.Close()
	for instRows.Next() {
		var r InstallmentRecord
		r.TenantID = tenantID
		if err := instRows.Scan(&r.ID, &r.CustomerID, &r.DueDate, &r.Amount, &r.Status, &r.PaidDate); err != nil {
			return data, fmt.Errorf("rollup: scan installment: %w", err)
		}
		data.Installments = append(data.Installments, r)
	}
	if err := instRows.Err(); err != nil {
		return data, fmt.Errorf("rollup: installment rows: %w", err)
	}

	checks, err := s.loadChecks(ctx, tenantID, PartyCustomer, customerID)
	if err != nil {
		return data, err
	}
	data.Checks = checks
	return data, nil
}

func (s *rollupService) loadSupplierData(ctx context.Context, tenantID, supplierID string) (SupplierSourceData, error) {
	var data SupplierSourceData

	var master SupplierRecord
	err := s.pool.QueryRow(ctx,
		"SELECT id, tenant_id, name, COALESCE(phone, '') FROM suppliers WHERE tenant_id = $1 AND id = $2",
		tenantID, supplierID,
	).Scan(&master.ID, &master.TenantID, &master.Name, &master.Phone)
	switch {
	case err == nil:
		data.Master = &master
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return data, fmt.Errorf("rollup: load supplier %s: %w", supplierID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, purchase_date, total, payment_method, status
		FROM purchases WHERE tenant_id = $1 AND supplier_id = $2`, tenantID, supplierID)
	if err != nil {
		return data, fmt.Errorf("rollup: load purchases for %s: %w", supplierID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r PurchaseRecord
		r.TenantID = tenantID
		if err := rows.Scan(&r.ID, &r.SupplierID, &r.Date, &r.Total, &r.PaymentMethod, &r.Status); err != nil {
			return data, fmt.Errorf("rollup: scan purchase: %w", err)
		}
		data.Purchases = append(data.Purchases, r)
	}
	if err := rows.Err(); err != nil {
		return data, fmt.Errorf("rollup: purchase rows: %w", err)
	}

	checks, err := s.loadChecks(ctx, tenantID, PartySupplier, supplierID)
	if err != nil {
		return data, err
	}
	data.Checks = checks
	return data, nil
}

func (s *rollupService) loadChecks(ctx context.Context, tenantID, partyType, partyID string) ([]CheckRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, party_type, party_id, due_date, amount, status, cleared_at
		FROM checks WHERE tenant_id = $1 AND party_type = $2 AND party_id = $3`,
		tenantID, partyType, partyID)
	if err != nil {
		return nil, fmt.Errorf("rollup: load checks for %s %s: %w", partyType, partyID, err)
	}
	defer rows.Close()

	var checks []CheckRecord
	for rows.Next() {
		var r CheckRecord
		r.TenantID = tenantID
		if err := rows.Scan(&r.ID, &r.PartyType, &r.PartyID, &r.DueDate, &r.Amount, &r.Status, &r.ClearedAt); err != nil {
			return nil, fmt.Errorf("rollup: scan check: %w", err)
		}
		checks = append(checks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rollup: check rows: %w", err)
	}
	return checks, nil
}

func (s *rollupService) loadProducts(ctx context.Context, tenantID string) ([]ProductStock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, quantity, min_quantity, purchase_cost
		FROM products WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("rollup: load products: %w", err)
	}
	defer rows.Close()

	var products []ProductStock
	for rows.Next() {
		var p ProductStock
		p.TenantID = tenantID
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.MinQuantity, &p.PurchaseCost); err != nil {
			return nil, fmt.Errorf("rollup: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rollup: product rows: %w", err)
	}
	return products, nil
}

func (s *rollupService) collectIDs(ctx context.Context, tenantID, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ── Projection writes ─────────────────────────────────────────────────────────

func (s *rollupService) upsertCustomerRollup(ctx context.Context, ec EnhancedCustomer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enhanced_customers
			(tenant_id, customer_id, name, total_purchases, pending_installments,
			 pending_checks, current_balance, loyalty_points, last_sale_date, recomputed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, customer_id) DO UPDATE SET
			name = EXCLUDED.name,
			total_purchases = EXCLUDED.total_purchases,
			pending_installments = EXCLUDED.pending_installments,
			pending_checks = EXCLUDED.pending_checks,
			current_balance = EXCLUDED.current_balance,
			loyalty_points = EXCLUDED.loyalty_points,
			last_sale_date = EXCLUDED.last_sale_date,
			recomputed_at = EXCLUDED.recomputed_at
	`, ec.TenantID, ec.CustomerID, ec.Name, ec.TotalPurchases, ec.PendingInstallments,
		ec.PendingChecks, ec.CurrentBalance, ec.LoyaltyPoints, ec.LastSaleDate, ec.RecomputedAt)
	if err != nil {
		return fmt.Errorf("rollup: upsert customer %s: %w", ec.CustomerID, err)
	}
	return nil
}

func (s *rollupService) upsertSupplierRollup(ctx context.Context, es EnhancedSupplier) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enhanced_suppliers
			(tenant_id, supplier_id, name, total_purchases, pending_checks,
			 current_balance, last_purchase, recomputed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, supplier_id) DO UPDATE SET
			name = EXCLUDED.name,
			total_purchases = EXCLUDED.total_purchases,
			pending_checks = EXCLUDED.pending_checks,
			current_balance = EXCLUDED.current_balance,
			last_purchase = EXCLUDED.last_purchase,
			recomputed_at = EXCLUDED.recomputed_at
	`, es.TenantID, es.SupplierID, es.Name, es.TotalPurchases, es.PendingChecks,
		es.CurrentBalance, es.LastPurchase, es.RecomputedAt)
	if err != nil {
		return fmt.Errorf("rollup: upsert supplier %s: %w", es.SupplierID, err)
	}
	return nil
}

func insertCustomerRollup(ctx context.Context, tx pgx.Tx, ec EnhancedCustomer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO enhanced_customers
			(tenant_id, customer_id, name, total_purchases, pending_installments,
			 pending_checks, current_balance, loyalty_points, last_sale_date, recomputed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ec.TenantID, ec.CustomerID, ec.Name, ec.TotalPurchases, ec.PendingInstallments,
		ec.PendingChecks, ec.CurrentBalance, ec.LoyaltyPoints, ec.LastSaleDate, ec.RecomputedAt)
	if err != nil {
		return fmt.Errorf("rollup: insert customer projection %s: %w", ec.CustomerID, err)
	}
	return nil
}

func insertSupplierRollup(ctx context.Context, tx pgx.Tx, es EnhancedSupplier) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO enhanced_suppliers
			(tenant_id, supplier_id, name, total_purchases, pending_checks,
			 current_balance, last_purchase, recomputed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, es.TenantID, es.SupplierID, es.Name, es.TotalPurchases, es.PendingChecks,
		es.CurrentBalance, es.LastPurchase, es.RecomputedAt)
	if err != nil {
		return fmt.Errorf("rollup: insert supplier projection %s: %w", es.SupplierID, err)
	}
	return nil
}
