package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	counters "casino-cuadres/internal/counters/domain"
	countermemory "casino-cuadres/internal/counters/infrastructure/memory"
	masterdata "casino-cuadres/internal/masterdata/domain"
	directorymemory "casino-cuadres/internal/masterdata/infrastructure/memory"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
	balancememory "casino-cuadres/internal/reconciliation/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixture struct {
	dir    *directorymemory.Directory
	store  *countermemory.Store
	repo   *balancememory.BalanceRepository
	clock  fixedClock
	engine *DeltaEngine
}

func newFixture(t *testing.T, mode reconciliation.DeltaMode) *fixture {
	t.Helper()
	f := &fixture{
		dir:   directorymemory.NewDirectory(),
		store: countermemory.NewStore(),
		repo:  balancememory.NewBalanceRepository(),
		clock: fixedClock{now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)},
	}
	engine, err := NewDeltaEngine(f.dir, f.store, mode)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) casino(t *testing.T, id int64, name, city string, active bool) {
	t.Helper()
	require.NoError(t, f.dir.PutCasino(masterdata.Casino{ID: id, Name: name, City: city, Active: active}))
}

func (f *fixture) machine(t *testing.T, id, casinoID int64, brand, model, denomination string, active bool) {
	t.Helper()
	require.NoError(t, f.dir.PutMachine(masterdata.Machine{
		ID:           id,
		CasinoID:     casinoID,
		Brand:        brand,
		Model:        model,
		Serial:       "SN-" + decimal.NewFromInt(id).String(),
		Denomination: decimal.RequireFromString(denomination),
		Active:       active,
	}))
}

func (f *fixture) snapshot(t *testing.T, machineID, casinoID int64, at string, in, out, jackpot, billetero int64) {
	t.Helper()
	ts, err := time.ParseInLocation(counters.TimestampLayout, at, time.UTC)
	require.NoError(t, err)
	require.NoError(t, f.store.Insert(context.Background(), &counters.Snapshot{
		MachineID: machineID,
		CasinoID:  casinoID,
		At:        ts,
		In:        decimal.NewFromInt(in),
		Out:       decimal.NewFromInt(out),
		Jackpot:   decimal.NewFromInt(jackpot),
		Billetero: decimal.NewFromInt(billetero),
		CreatedBy: "test",
	}))
}

func (f *fixture) machineReconciler(t *testing.T) *MachineReconciler {
	t.Helper()
	r, err := NewMachineReconciler(f.engine, f.repo, f.clock)
	require.NoError(t, err)
	return r
}

func (f *fixture) casinoReconciler(t *testing.T, opts ...Option) *CasinoReconciler {
	t.Helper()
	r, err := NewCasinoReconciler(f.dir, f.engine, f.repo, f.clock, opts...)
	require.NoError(t, err)
	return r
}

func (f *fixture) composer(t *testing.T, opts ...Option) *ReportComposer {
	t.Helper()
	c, err := NewReportComposer(f.dir, f.engine, f.clock, opts...)
	require.NoError(t, err)
	return c
}

func mustPeriod(t *testing.T, start, end string) reconciliation.Period {
	t.Helper()
	p, err := reconciliation.ParsePeriod(start, end, time.UTC)
	require.NoError(t, err)
	return p
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// failingStore fails range queries for one machine.
type failingStore struct {
	counters.Store
	machineID int64
}

func (s failingStore) ListInRange(ctx context.Context, machineID int64, start, end time.Time) ([]counters.Snapshot, error) {
	if machineID == s.machineID {
		return nil, errors.New("storage unavailable")
	}
	return s.Store.ListInRange(ctx, machineID, start, end)
}
