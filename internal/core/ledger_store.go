package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerFilter narrows List results. Nil fields mean no bound.
type LedgerFilter struct {
	Direction     *Direction
	ReferenceType *ReferenceType
	Category      *Category
	From          *time.Time
	To            *time.Time
}

// LedgerStore is the single source of truth for cash movement.
//
// Append must be a silent no-op when the entry's (reference_id,
// reference_type) pair already exists for the tenant; callers rely on
// this to make repeated sync calls safe to retry. RemoveByProvenance
// removes by the same key only, so a subsystem can never delete entries
// it did not create. Entries are never mutated in place for amount,
// date or direction; corrections are delete plus re-append.
type LedgerStore interface {
	Append(ctx context.Context, entry LedgerEntry) (bool, error)
	List(ctx context.Context, tenantID string, filter LedgerFilter) ([]LedgerEntry, error)
	RemoveByProvenance(ctx context.Context, tenantID, referenceID string, refType ReferenceType) (bool, error)
	SumSigned(ctx context.Context, tenantID string) (decimal.Decimal, error)
	NetCashFlow(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error)
}

type ledgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore constructs a LedgerStore backed by PostgreSQL.
func NewLedgerStore(pool *pgxpool.Pool) LedgerStore {
	return &ledgerStore{pool: pool}
}

// Append inserts the entry unless its provenance key already exists for
// the tenant. Returns true when a row was inserted, false on the silent
// duplicate no-op. The existence check and the insert are a single
// statement, so concurrent retries cannot race past the unique index.
func (s *ledgerStore) Append(ctx context.Context, entry LedgerEntry) (bool, error) {
	if entry.TenantID == "" {
		return false, errors.New("ledger append: tenant id is required")
	}
	if entry.ReferenceID == "" || entry.ReferenceType == "" {
		return false, errors.New("ledger append: provenance key is required")
	}
	if entry.Amount.IsNegative() {
		return false, fmt.Errorf("ledger append: amount must be non-negative, got %s", entry.Amount)
	}

	meta := []byte("{}")
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return false, fmt.Errorf("ledger append: marshal metadata: %w", err)
		}
		meta = b
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries
			(tenant_id, entry_date, direction, category, subcategory, amount,
			 description, payment_method, reference_id, reference_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (tenant_id, reference_id, reference_type) WHERE deleted_at IS NULL DO NOTHING
		RETURNING id
	`, entry.TenantID, entry.Date, entry.Direction, entry.Category, entry.Subcategory,
		entry.Amount, entry.Description, entry.PaymentMethod,
		entry.ReferenceID, entry.ReferenceType, meta).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Provenance key already ledgered: absorbed, not an error.
			return false, nil
		}
		return false, fmt.Errorf("ledger append: %w", err)
	}
	return true, nil
}

func (s *ledgerStore) List(ctx context.Context, tenantID string, filter LedgerFilter) ([]LedgerEntry, error) {
	q := `
		SELECT id, tenant_id, entry_date, direction, category, subcategory, amount,
		       description, payment_method, reference_id, reference_type, metadata, created_at
		FROM ledger_entries
		WHERE tenant_id = $1 AND deleted_at IS NULL`

	args := []any{tenantID}
	if filter.Direction != nil {
		args = append(args, *filter.Direction)
		q += fmt.Sprintf(" AND direction = $%d", len(args))
	}
	if filter.ReferenceType != nil {
		args = append(args, *filter.ReferenceType)
		q += fmt.Sprintf(" AND reference_type = $%d", len(args))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		q += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		q += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		q += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}
	q += " ORDER BY entry_date ASC, id ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var meta []byte
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Date, &e.Direction, &e.Category, &e.Subcategory,
			&e.Amount, &e.Description, &e.PaymentMethod,
			&e.ReferenceID, &e.ReferenceType, &meta, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger list: scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("ledger list: metadata for entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	return entries, nil
}

// RemoveByProvenance soft-deletes the entry with the given provenance
// key. Removing an already-absent key is a no-op, which makes resolver
// retries naturally idempotent. Returns true when a row was removed.
func (s *ledgerStore) RemoveByProvenance(ctx context.Context, tenantID, referenceID string, refType ReferenceType) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ledger_entries
		SET deleted_at = NOW()
		WHERE tenant_id = $1 AND reference_id = $2 AND reference_type = $3 AND deleted_at IS NULL
	`, tenantID, referenceID, refType)
	if err != nil {
		return false, fmt.Errorf("ledger remove (%s/%s): %w", refType, referenceID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SumSigned returns the tenant's net cash position over the whole
// ledger: income positive, expense negative.
func (s *ledgerStore) SumSigned(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'income' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE tenant_id = $1 AND deleted_at IS NULL
	`, tenantID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger sum: %w", err)
	}
	return sum, nil
}

// NetCashFlow returns income minus expenses for entries dated within
// [from, to] inclusive.
func (s *ledgerStore) NetCashFlow(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error) {
	var net decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'income' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND entry_date >= $2 AND entry_date <= $3
	`, tenantID, from, to).Scan(&net)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger net cash flow: %w", err)
	}
	return net, nil
}
