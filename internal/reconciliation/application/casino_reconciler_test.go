package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

func seedCasino(t *testing.T, f *fixture) {
	t.Helper()
	f.casino(t, 1, "Casino Centro", "Bogota", true)
	f.machine(t, 10, 1, "IGT", "S2000", "1", true)
	f.machine(t, 11, 1, "Aristocrat", "Helix", "2", true)
	f.machine(t, 12, 1, "IGT", "S2000", "1", true) // no counters
	f.machine(t, 13, 1, "IGT", "S2000", "1", false)

	f.snapshot(t, 10, 1, "2024-01-01 08:00:00", 1000, 200, 10, 5)
	f.snapshot(t, 10, 1, "2024-01-31 22:00:00", 1500, 300, 20, 7)
	f.snapshot(t, 11, 1, "2024-01-02 08:00:00", 100, 10, 0, 0)
	f.snapshot(t, 11, 1, "2024-01-30 08:00:00", 400, 60, 5, 3)
	f.snapshot(t, 13, 1, "2024-01-02 08:00:00", 100, 10, 0, 0)
	f.snapshot(t, 13, 1, "2024-01-30 08:00:00", 900, 10, 0, 0)
}

func TestReconcileCasino_SumsMachinesAndIsolatesNoData(t *testing.T) {
	f := newFixture(t, "")
	seedCasino(t, f)
	ctx := context.Background()
	period := mustPeriod(t, "2024-01-01", "2024-01-31")

	res, err := f.casinoReconciler(t, WithMaxParallel(2)).ReconcileCasino(ctx, CasinoRequest{CasinoID: 1, Period: period, Actor: "ana"})
	require.NoError(t, err)

	require.Len(t, res.Machines, 3)
	assert.Equal(t, []int64{10, 11, 12}, []int64{res.Machines[0].MachineID, res.Machines[1].MachineID, res.Machines[2].MachineID})
	assert.Equal(t, OutcomeOK, res.Machines[0].Status)
	assert.Equal(t, OutcomeOK, res.Machines[1].Status)
	assert.Equal(t, OutcomeNoData, res.Machines[2].Status)
	assert.Equal(t, reconciliation.KindNoData, res.Machines[2].ErrorKind)
	assert.NotEmpty(t, res.Machines[2].Error)
	assert.Equal(t, "Casino Centro", res.Machines[0].CasinoName)

	// machine 11: (400-100)*2=600 in, (60-10)*2=100 out, 10 jackpot, 6 billetero
	mr := f.machineReconciler(t)
	var want reconciliation.Totals
	for _, id := range []int64{10, 11} {
		m, err := mr.Reconcile(ctx, MachineRequest{MachineID: id, Period: period})
		require.NoError(t, err)
		want = want.Add(m.Balance.Totals)
	}
	assert.True(t, want.Equal(res.Balance.Totals))
	requireDecimal(t, "1100", res.Balance.Totals.In)
	requireDecimal(t, "200", res.Balance.Totals.Out)
	requireDecimal(t, "20", res.Balance.Totals.Jackpot)
	requireDecimal(t, "8", res.Balance.Totals.Billetero)
	requireDecimal(t, "880", res.Balance.Profit)
	assert.Equal(t, reconciliation.ScopeCasino, res.Balance.Scope)
	assert.Equal(t, int64(0), res.Balance.ID)
}

func TestReconcileCasino_ZeroMachines(t *testing.T) {
	f := newFixture(t, "")
	f.casino(t, 2, "Casino Vacio", "Cali", true)

	res, err := f.casinoReconciler(t).ReconcileCasino(context.Background(), CasinoRequest{CasinoID: 2, Period: mustPeriod(t, "2024-01-01", "2024-01-31")})
	require.NoError(t, err)
	assert.Empty(t, res.Machines)
	assert.True(t, res.Balance.Totals.Equal(reconciliation.Totals{}))
	assert.True(t, res.Balance.Profit.IsZero())
}

func TestReconcileCasino_TopLevelErrorsAbort(t *testing.T) {
	f := newFixture(t, "")
	seedCasino(t, f)
	f.casino(t, 3, "Casino Cerrado", "Cali", false)
	r := f.casinoReconciler(t)
	period := mustPeriod(t, "2024-01-01", "2024-01-31")
	ctx := context.Background()

	_, err := r.ReconcileCasino(ctx, CasinoRequest{CasinoID: 99, Period: period})
	assert.ErrorIs(t, err, reconciliation.ErrNotFound)

	_, err = r.ReconcileCasino(ctx, CasinoRequest{CasinoID: 3, Period: period})
	assert.ErrorIs(t, err, reconciliation.ErrNotFound)

	_, err = r.ReconcileCasino(ctx, CasinoRequest{CasinoID: 1, Period: reconciliation.Period{Start: period.End, End: period.Start}})
	assert.ErrorIs(t, err, reconciliation.ErrInvalidPeriod)
}

func TestReconcileCasino_StoreFailureIsRecordedPerMachine(t *testing.T) {
	f := newFixture(t, "")
	seedCasino(t, f)
	engine, err := NewDeltaEngine(f.dir, failingStore{Store: f.store, machineID: 11}, "")
	require.NoError(t, err)
	r, err := NewCasinoReconciler(f.dir, engine, f.repo, f.clock)
	require.NoError(t, err)

	res, err := r.ReconcileCasino(context.Background(), CasinoRequest{CasinoID: 1, Period: mustPeriod(t, "2024-01-01", "2024-01-31")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, res.Machines[1].Status)
	assert.Equal(t, reconciliation.KindInternal, res.Machines[1].ErrorKind)
	requireDecimal(t, "500", res.Balance.Totals.In)
}

func TestReconcileCasino_LocksAreIndependent(t *testing.T) {
	f := newFixture(t, "")
	seedCasino(t, f)
	ctx := context.Background()
	period := mustPeriod(t, "2024-01-01", "2024-01-31")
	cr := f.casinoReconciler(t)
	mr := f.machineReconciler(t)

	casinoRes, err := cr.ReconcileCasino(ctx, CasinoRequest{CasinoID: 1, Period: period, Persist: true, Lock: true, Actor: "ana"})
	require.NoError(t, err)
	require.True(t, casinoRes.Balance.Locked)

	machines, err := f.repo.List(ctx, reconciliation.BalanceFilter{Scope: reconciliation.ScopeMachine})
	require.NoError(t, err)
	assert.Empty(t, machines)

	machineRes, err := mr.Reconcile(ctx, MachineRequest{MachineID: 10, Period: period, Persist: true, Lock: true, Actor: "ana"})
	require.NoError(t, err)
	assert.True(t, machineRes.Balance.Locked)

	_, err = cr.ReconcileCasino(ctx, CasinoRequest{CasinoID: 1, Period: period, Persist: true, Actor: "ana"})
	assert.ErrorIs(t, err, reconciliation.ErrLockedBalance)

	other := mustPeriod(t, "2024-01-01", "2024-01-15")
	_, err = cr.ReconcileCasino(ctx, CasinoRequest{CasinoID: 1, Period: other, Persist: true, Actor: "ana"})
	require.NoError(t, err)
}
