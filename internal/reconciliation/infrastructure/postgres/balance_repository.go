package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

const (
	defaultMachineBalancesTable = "machine_balances"
	defaultCasinoBalancesTable  = "casino_balances"
)

type balanceTable struct {
	name    string
	subject string
}

// BalanceRepository persists machine and casino balances in Postgres.
type BalanceRepository struct {
	db     *sql.DB
	tables map[reconciliation.Scope]balanceTable
}

// RepositoryOption configures the repository.
type RepositoryOption func(*BalanceRepository)

// WithTables overrides the machine and casino balance tables.
func WithTables(machineTable, casinoTable string) RepositoryOption {
	return func(repo *BalanceRepository) {
		if machineTable != "" {
			repo.tables[reconciliation.ScopeMachine] = balanceTable{name: machineTable, subject: "machine_id"}
		}
		if casinoTable != "" {
			repo.tables[reconciliation.ScopeCasino] = balanceTable{name: casinoTable, subject: "casino_id"}
		}
	}
}

// NewBalanceRepository constructs a repository with default tables.
func NewBalanceRepository(db *sql.DB, opts ...RepositoryOption) *BalanceRepository {
	repo := &BalanceRepository{
		db: db,
		tables: map[reconciliation.Scope]balanceTable{
			reconciliation.ScopeMachine: {name: defaultMachineBalancesTable, subject: "machine_id"},
			reconciliation.ScopeCasino:  {name: defaultCasinoBalancesTable, subject: "casino_id"},
		},
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

func (r *BalanceRepository) table(scope reconciliation.Scope) (balanceTable, error) {
	if r == nil || r.db == nil {
		return balanceTable{}, errors.New("balance repo: nil db")
	}
	t, ok := r.tables[scope]
	if !ok {
		return balanceTable{}, reconciliation.ErrInvalidScope
	}
	return t, nil
}

func (t balanceTable) columns() string {
	return "id, " + t.subject + ", period_start, period_end, in_total, out_total, jackpot_total, billetero_total, " +
		"utilidad, generated_at, generated_by, locked, locked_at, locked_by"
}

// GetByPeriod loads the balance stored for key.
func (r *BalanceRepository) GetByPeriod(ctx context.Context, key reconciliation.Key) (*reconciliation.Balance, error) {
	t, err := r.table(key.Scope)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s = $1 AND period_start = $2 AND period_end = $3
LIMIT 1`, t.columns(), t.name, t.subject)

	row := r.db.QueryRowContext(ctx, query, key.SubjectID, dateArg(key.Period.Start), dateArg(key.Period.End))
	b, err := scanBalance(row, key.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// GetByID loads a balance by id.
func (r *BalanceRepository) GetByID(ctx context.Context, scope reconciliation.Scope, id int64) (*reconciliation.Balance, error) {
	t, err := r.table(scope)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, t.columns(), t.name)
	b, err := scanBalance(r.db.QueryRowContext(ctx, query, id), scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// List returns balances matching filter ordered by period start then id.
func (r *BalanceRepository) List(ctx context.Context, filter reconciliation.BalanceFilter) ([]reconciliation.Balance, error) {
	t, err := r.table(filter.Scope)
	if err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)
	if filter.SubjectID > 0 {
		args = append(args, filter.SubjectID)
		conds = append(conds, fmt.Sprintf("%s = $%d", t.subject, len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, dateArg(filter.From))
		conds = append(conds, fmt.Sprintf("period_start >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, dateArg(filter.To))
		conds = append(conds, fmt.Sprintf("period_end <= $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = reconciliation.DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
SELECT %s
FROM %s
%s
ORDER BY period_start, id
LIMIT $%d OFFSET $%d`, t.columns(), t.name, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reconciliation.Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows, filter.Scope)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Upsert inserts or overwrites an unlocked balance in one statement.
// A locked row is never touched; the caller gets ErrLockedBalance unless
// the incoming balance re-locks identical figures.
func (r *BalanceRepository) Upsert(ctx context.Context, balance *reconciliation.Balance) (*reconciliation.Balance, error) {
	if err := balance.Validate(); err != nil {
		return nil, err
	}
	t, err := r.table(balance.Scope)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	%s,
	period_start,
	period_end,
	in_total,
	out_total,
	jackpot_total,
	billetero_total,
	utilidad,
	generated_at,
	generated_by,
	locked,
	locked_at,
	locked_by
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (%s, period_start, period_end)
DO UPDATE SET
	in_total = EXCLUDED.in_total,
	out_total = EXCLUDED.out_total,
	jackpot_total = EXCLUDED.jackpot_total,
	billetero_total = EXCLUDED.billetero_total,
	utilidad = EXCLUDED.utilidad,
	generated_at = EXCLUDED.generated_at,
	generated_by = EXCLUDED.generated_by,
	locked = EXCLUDED.locked,
	locked_at = EXCLUDED.locked_at,
	locked_by = EXCLUDED.locked_by
WHERE %s.locked = false
RETURNING %s`, t.name, t.subject, t.subject, t.name, t.columns())

	row := r.db.QueryRowContext(
		ctx,
		query,
		balance.SubjectID,
		dateArg(balance.Period.Start),
		dateArg(balance.Period.End),
		balance.Totals.In,
		balance.Totals.Out,
		balance.Totals.Jackpot,
		balance.Totals.Billetero,
		balance.Profit,
		balance.GeneratedAt.UTC(),
		balance.GeneratedBy,
		balance.Locked,
		nullTime(balance.LockedAt),
		nullString(balance.LockedBy),
	)
	stored, err := scanBalance(row, balance.Scope)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, err := r.GetByPeriod(ctx, balance.Key())
	if err != nil {
		return nil, err
	}
	if balance.IsRelockOf(existing) {
		return existing, nil
	}
	return nil, fmt.Errorf("%w: %s", reconciliation.ErrLockedBalance, balance.Key())
}

// Lock marks a balance locked. Re-locking keeps the first lock stamp.
func (r *BalanceRepository) Lock(ctx context.Context, scope reconciliation.Scope, id int64, actor string, at time.Time) (bool, error) {
	t, err := r.table(scope)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET locked = true, locked_at = $2, locked_by = $3
WHERE id = $1 AND locked = false`, t.name)

	res, err := r.db.ExecContext(ctx, query, id, at.UTC(), actor)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	var one int
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, t.name), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner, scope reconciliation.Scope) (*reconciliation.Balance, error) {
	var (
		b          reconciliation.Balance
		start, end time.Time
		lockedAt   sql.NullTime
		lockedBy   sql.NullString
	)
	if err := row.Scan(
		&b.ID,
		&b.SubjectID,
		&start,
		&end,
		&b.Totals.In,
		&b.Totals.Out,
		&b.Totals.Jackpot,
		&b.Totals.Billetero,
		&b.Profit,
		&b.GeneratedAt,
		&b.GeneratedBy,
		&b.Locked,
		&lockedAt,
		&lockedBy,
	); err != nil {
		return nil, err
	}
	period, err := reconciliation.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	b.Scope = scope
	b.Period = period
	if lockedAt.Valid {
		at := lockedAt.Time
		b.LockedAt = &at
	}
	b.LockedBy = lockedBy.String
	return &b, nil
}

func dateArg(t time.Time) string {
	return t.Format(reconciliation.DateLayout)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
