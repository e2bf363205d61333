package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

var (
	generatedAt = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	janStart    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	janEnd      = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

var balanceColumns = []string{
	"id", "machine_id", "period_start", "period_end", "in_total", "out_total", "jackpot_total", "billetero_total",
	"utilidad", "generated_at", "generated_by", "locked", "locked_at", "locked_by",
}

func newMock(t *testing.T) (*BalanceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBalanceRepository(db), mock
}

func machineBalance(t *testing.T, in int64, locked bool) *reconciliation.Balance {
	t.Helper()
	period, err := reconciliation.NewPeriod(janStart, janEnd)
	require.NoError(t, err)
	b, err := reconciliation.NewBalance(reconciliation.ScopeMachine, 7, period, reconciliation.Totals{
		In:  decimal.NewFromInt(in),
		Out: decimal.NewFromInt(10),
	}, generatedAt, "ana", locked)
	require.NoError(t, err)
	return b
}

func balanceRow(id int64, in string, locked bool) *sqlmock.Rows {
	var lockedAt, lockedBy any
	if locked {
		lockedAt, lockedBy = generatedAt, "ana"
	}
	profit := decimal.RequireFromString(in).Sub(decimal.NewFromInt(10)).String()
	return sqlmock.NewRows(balanceColumns).
		AddRow(id, int64(7), janStart, janEnd, in, "10", "0", "0", profit, generatedAt, "ana", locked, lockedAt, lockedBy)
}

func TestBalanceRepository_UpsertInserts(t *testing.T) {
	repo, mock := newMock(t)
	b := machineBalance(t, 100, false)

	mock.ExpectQuery(`INSERT INTO machine_balances`).
		WithArgs(int64(7), "2024-01-01", "2024-01-31", b.Totals.In, b.Totals.Out, b.Totals.Jackpot, b.Totals.Billetero,
			b.Profit, generatedAt, "ana", false, nil, nil).
		WillReturnRows(balanceRow(1, "100", false))

	stored, err := repo.Upsert(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ID)
	assert.Equal(t, reconciliation.ScopeMachine, stored.Scope)
	assert.Equal(t, b.Key().String(), stored.Key().String())
	assert.True(t, decimal.NewFromInt(90).Equal(stored.Profit))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_UpsertRejectsLockedRow(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO machine_balances`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM machine_balances`).
		WithArgs(int64(7), "2024-01-01", "2024-01-31").
		WillReturnRows(balanceRow(1, "100", true))

	_, err := repo.Upsert(context.Background(), machineBalance(t, 300, true))
	assert.ErrorIs(t, err, reconciliation.ErrLockedBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_UpsertAcceptsIdenticalRelock(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO machine_balances`).
		WillReturnRows(sqlmock.NewRows(balanceColumns))
	mock.ExpectQuery(`SELECT (.+) FROM machine_balances`).
		WillReturnRows(balanceRow(4, "100", true))

	stored, err := repo.Upsert(context.Background(), machineBalance(t, 100, true))
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.ID)
	assert.True(t, stored.Locked)
	assert.Equal(t, "ana", stored.LockedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_GetByIDMissing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM casino_balances WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(balanceColumns))

	b, err := repo.GetByID(context.Background(), reconciliation.ScopeCasino, 9)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = repo.GetByID(context.Background(), "region", 9)
	assert.ErrorIs(t, err, reconciliation.ErrInvalidScope)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_ListBuildsFilters(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`WHERE machine_id = \$1 AND period_start >= \$2`).
		WithArgs(int64(7), "2024-01-01", 100, 0).
		WillReturnRows(balanceRow(1, "100", false).AddRow(
			int64(2), int64(7), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), "50", "10", "0", "0", "40", generatedAt, "ana", false, nil, nil))

	out, err := repo.List(context.Background(), reconciliation.BalanceFilter{
		Scope:     reconciliation.ScopeMachine,
		SubjectID: 7,
		From:      janStart,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "20240201-20240229", out[1].Period.Key())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_Lock(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE casino_balances`).
		WithArgs(int64(1), generatedAt, "boss").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Lock(ctx, reconciliation.ScopeCasino, 1, "boss", generatedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE casino_balances`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM casino_balances WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	ok, err = repo.Lock(ctx, reconciliation.ScopeCasino, 1, "boss", generatedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE casino_balances`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM casino_balances WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	ok, err = repo.Lock(ctx, reconciliation.ScopeCasino, 99, "boss", generatedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_NilDB(t *testing.T) {
	repo := NewBalanceRepository(nil)
	_, err := repo.GetByID(context.Background(), reconciliation.ScopeMachine, 1)
	assert.Error(t, err)
}
