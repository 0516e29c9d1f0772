package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AlertEngine scans the rolled-up state and the raw ledger for
// threshold violations. Scans are read-only with respect to every table
// except the retained alert list, which is bounded to the most recent
// fifty alerts. The engine never sets read or resolved timestamps;
// those belong to user actions via MarkRead and MarkResolved.
//
// No dedup of alert content across scans is performed: the same overdue
// installment re-alerts on every pass. Known gap, kept deliberately.
type AlertEngine interface {
	Scan(ctx context.Context, tenantID string) ([]SmartAlert, error)
	Recent(ctx context.Context, tenantID string) ([]SmartAlert, error)
	MarkRead(ctx context.Context, tenantID, alertID string) error
	MarkResolved(ctx context.Context, tenantID, alertID string) error
}

type alertEngine struct {
	pool  *pgxpool.Pool
	store LedgerStore
}

// NewAlertEngine constructs an AlertEngine over the pool and ledger store.
func NewAlertEngine(pool *pgxpool.Pool, store LedgerStore) AlertEngine {
	return &alertEngine{pool: pool, store: store}
}

// Scan evaluates all alert rules against current state, persists the
// new alerts, and trims the retained list to the bounded size.
func (e *alertEngine) Scan(ctx context.Context, tenantID string) ([]SmartAlert, error) {
	snap, err := e.loadSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	fresh := evaluateAlerts(tenantID, snap)

	existing, err := e.Recent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	retained := capRecentAlerts(append(existing, fresh...), retainedAlertLimit)
	if err := e.rewriteRetained(ctx, tenantID, retained); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (e *alertEngine) Recent(ctx context.Context, tenantID string) ([]SmartAlert, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT id, type, category, title, message, priority, action_required,
		       COALESCE(action_target, ''), created_at, read_at, resolved_at
		FROM smart_alerts
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, tenantID, retainedAlertLimit)
	if err != nil {
		return nil, fmt.Errorf("alerts: load recent: %w", err)
	}
	defer rows.Close()

	var alerts []SmartAlert
	for rows.Next() {
		var a SmartAlert
		a.TenantID = tenantID
		if err := rows.Scan(&a.ID, &a.Type, &a.Category, &a.Title, &a.Message, &a.Priority,
			&a.ActionRequired, &a.ActionTarget, &a.CreatedAt, &a.ReadAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("alerts: scan row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alerts: rows: %w", err)
	}
	return alerts, nil
}

func (e *alertEngine) MarkRead(ctx context.Context, tenantID, alertID string) error {
	return e.stamp(ctx, tenantID, alertID, "read_at")
}

func (e *alertEngine) MarkResolved(ctx context.Context, tenantID, alertID string) error {
	return e.stamp(ctx, tenantID, alertID, "resolved_at")
}

func (e *alertEngine) stamp(ctx context.Context, tenantID, alertID, column string) error {
	// column is one of two fixed identifiers, never user input.
	tag, err := e.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE smart_alerts SET %s = NOW()
		WHERE tenant_id = $1 AND id = $2 AND %s IS NULL`, column, column),
		tenantID, alertID)
	if err != nil {
		return fmt.Errorf("alerts: mark %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alerts: alert %s not found or already stamped", alertID)
	}
	return nil
}

// rewriteRetained replaces the tenant's alert list with the capped set,
// preserving read/resolved stamps carried in the retained rows.
func (e *alertEngine) rewriteRetained(ctx context.Context, tenantID string, retained []SmartAlert) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("alerts: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM smart_alerts WHERE tenant_id = $1", tenantID); err != nil {
		return fmt.Errorf("alerts: clear retained list: %w", err)
	}
	for _, a := range retained {
		var target *string
		if a.ActionTarget != "" {
			target = &a.ActionTarget
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO smart_alerts
				(id, tenant_id, type, category, title, message, priority,
				 action_required, action_target, created_at, read_at, resolved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			a.ID, tenantID, a.Type, a.Category, a.Title, a.Message, a.Priority,
			a.ActionRequired, target, a.CreatedAt, a.ReadAt, a.ResolvedAt); err != nil {
			return fmt.Errorf("alerts: insert %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("alerts: commit: %w", err)
	}
	return nil
}

// ── Snapshot load ─────────────────────────────────────────────────────────────

func (e *alertEngine) loadSnapshot(ctx context.Context, tenantID string) (AlertSnapshot, error) {
	now := time.Now()
	snap := AlertSnapshot{Now: now}

	rows, err := e.pool.Query(ctx, `
		SELECT id, name, quantity, min_quantity, purchase_cost
		FROM products
		WHERE tenant_id = $1 AND quantity <= min_quantity`, tenantID)
	if err != nil {
		return snap, fmt.Errorf("alerts: load low stock: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p ProductStock
		p.TenantID = tenantID
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.MinQuantity, &p.PurchaseCost); err != nil {
			return snap, fmt.Errorf("alerts: scan product: %w", err)
		}
		snap.LowStock = append(snap.LowStock, p)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("alerts: product rows: %w", err)
	}

	instRows, err := e.pool.Query(ctx, `
		SELECT id, customer_id, due_date, amount, status, paid_date
		FROM installments WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPending)
	if err != nil {
		return snap, fmt.Errorf("alerts: load installments: %w", err)
	}
	defer instRows.Close()
	for instRows.Next() {
		var r InstallmentRecord
		r.TenantID = tenantID
		if err := instRows.Scan(&r.ID, &r.CustomerID, &r.DueDate, &r.Amount, &r.Status, &r.PaidDate); err != nil {
			return snap, fmt.Errorf("alerts: scan installment: %w", err)
		}
		snap.PendingInstallments = append(snap.PendingInstallments, r)
	}
	if err := instRows.Err(); err != nil {
		return snap, fmt.Errorf("alerts: installment rows: %w", err)
	}

	checkRows, err := e.pool.Query(ctx, `
		SELECT id, party_type, party_id, due_date, amount, status, cleared_at
		FROM checks WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPending)
	if err != nil {
		return snap, fmt.Errorf("alerts: load checks: %w", err)
	}
	defer checkRows.Close()
	for checkRows.Next() {
		var r CheckRecord
		r.TenantID = tenantID
		if err := checkRows.Scan(&r.ID, &r.PartyType, &r.PartyID, &r.DueDate, &r.Amount, &r.Status, &r.ClearedAt); err != nil {
			return snap, fmt.Errorf("alerts: scan check: %w", err)
		}
		snap.PendingChecks = append(snap.PendingChecks, r)
	}
	if err := checkRows.Err(); err != nil {
		return snap, fmt.Errorf("alerts: check rows: %w", err)
	}

	cutoff := now.AddDate(0, 0, -customerInactivityDays)
	err = e.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM customers c
		WHERE c.tenant_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM sales s
			WHERE s.tenant_id = c.tenant_id AND s.customer_id = c.id AND s.sale_date >= $2
		  )`, tenantID, cutoff).Scan(&snap.InactiveCustomers)
	if err != nil {
		return snap, fmt.Errorf("alerts: count inactive customers: %w", err)
	}

	net, err := e.store.NetCashFlow(ctx, tenantID, now.AddDate(0, 0, -cashFlowWindowDays), now)
	if err != nil {
		return snap, fmt.Errorf("alerts: %w", err)
	}
	snap.NetCashFlow30d = net

	return snap, nil
}
