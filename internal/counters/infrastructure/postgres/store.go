package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	counters "casino-cuadres/internal/counters/domain"
)

const defaultCountersTable = "counters"

const counterColumns = "id, machine_id, casino_id, at, in_amount, out_amount, jackpot_amount, billetero_amount, " +
	"created_at, created_by, updated_at, updated_by"

// Store is a Postgres implementation of counters.Store.
type Store struct {
	db    *sql.DB
	table string
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithTable overrides the default table.
func WithTable(table string) StoreOption {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// NewStore constructs a store.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, table: defaultCountersTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListInRange returns a machine's snapshots in [start, end) ordered by time.
func (s *Store) ListInRange(ctx context.Context, machineID int64, start, end time.Time) ([]counters.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("counter store: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE machine_id = $1 AND at >= $2 AND at < $3
ORDER BY at, id`, counterColumns, s.table)
	return s.query(ctx, query, machineID, start, end)
}

// ListByCasinoAndDate returns a casino's snapshots in [start, end).
func (s *Store) ListByCasinoAndDate(ctx context.Context, casinoID int64, start, end time.Time) ([]counters.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("counter store: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE casino_id = $1 AND at >= $2 AND at < $3
ORDER BY at, id`, counterColumns, s.table)
	return s.query(ctx, query, casinoID, start, end)
}

// Insert stores a snapshot and assigns its id.
func (s *Store) Insert(ctx context.Context, snapshot *counters.Snapshot) error {
	if s == nil || s.db == nil {
		return errors.New("counter store: nil db")
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	machine_id, casino_id, at, in_amount, out_amount, jackpot_amount, billetero_amount, created_at, created_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id`, s.table)

	return s.db.QueryRowContext(ctx, query,
		snapshot.MachineID, snapshot.CasinoID, snapshot.At,
		snapshot.In, snapshot.Out, snapshot.Jackpot, snapshot.Billetero,
		snapshot.CreatedAt.UTC(), snapshot.CreatedBy,
	).Scan(&snapshot.ID)
}

// UpdateBatch applies all corrections in one transaction.
func (s *Store) UpdateBatch(ctx context.Context, casinoID int64, date time.Time, corrections []counters.Correction, actor string, at time.Time) ([]counters.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("counter store: nil db")
	}
	start, end := counters.DayRange(date)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	var updated []counters.Snapshot
	for _, c := range corrections {
		query := fmt.Sprintf(`
UPDATE %s
SET in_amount = COALESCE($1, in_amount),
	out_amount = COALESCE($2, out_amount),
	jackpot_amount = COALESCE($3, jackpot_amount),
	billetero_amount = COALESCE($4, billetero_amount),
	updated_at = $5,
	updated_by = $6
WHERE casino_id = $7 AND machine_id = $8 AND at >= $9 AND at < $10
	AND ($11::timestamptz IS NULL OR at = $11)
RETURNING %s`, s.table, counterColumns)

		var exact sql.NullTime
		if c.At != nil {
			exact = sql.NullTime{Time: *c.At, Valid: true}
		}
		rows, err := tx.QueryContext(ctx, query,
			nullDecimal(c.In), nullDecimal(c.Out), nullDecimal(c.Jackpot), nullDecimal(c.Billetero),
			at.UTC(), actor, casinoID, c.MachineID, start, end, exact,
		)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		batch, err := scanSnapshots(rows)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		updated = append(updated, batch...)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]counters.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]counters.Snapshot, error) {
	defer rows.Close()
	out := make([]counters.Snapshot, 0)
	for rows.Next() {
		var (
			snap      counters.Snapshot
			updatedAt sql.NullTime
			updatedBy sql.NullString
		)
		if err := rows.Scan(
			&snap.ID, &snap.MachineID, &snap.CasinoID, &snap.At,
			&snap.In, &snap.Out, &snap.Jackpot, &snap.Billetero,
			&snap.CreatedAt, &snap.CreatedBy, &updatedAt, &updatedBy,
		); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			snap.UpdatedAt = updatedAt.Time
		}
		snap.UpdatedBy = updatedBy.String
		out = append(out, snap)
	}
	return out, rows.Err()
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}
