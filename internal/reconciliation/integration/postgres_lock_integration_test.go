package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	counters "casino-cuadres/internal/counters/domain"
	counterrepo "casino-cuadres/internal/counters/infrastructure/postgres"
	masterdata "casino-cuadres/internal/masterdata/domain"
	masterdatarepo "casino-cuadres/internal/masterdata/infrastructure/postgres"
	reconapp "casino-cuadres/internal/reconciliation/application"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
	balancerepo "casino-cuadres/internal/reconciliation/infrastructure/postgres"
)

const (
	itCasinoID  int64 = 990001
	itMachineA  int64 = 990011
	itMachineB  int64 = 990012
	itActor           = "it-runner"
	itTimestamp       = counters.TimestampLayout
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestCasinoLock_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"casinos", "machines", "counters", "machine_balances", "casino_balances"} {
		if !tableExists(db, table) {
			t.Skipf("%s missing; run migrations", table)
		}
	}

	ctx := context.Background()
	cleanup(ctx, db)
	t.Cleanup(func() { cleanup(context.Background(), db) })

	directory := masterdatarepo.NewDirectory(db)
	if err := directory.SaveCasino(ctx, masterdata.Casino{ID: itCasinoID, Name: "Casino IT", City: "Cali", Active: true}); err != nil {
		t.Fatalf("save casino: %v", err)
	}
	for _, id := range []int64{itMachineA, itMachineB} {
		m := masterdata.Machine{ID: id, CasinoID: itCasinoID, Brand: "IGT", Serial: "IT-" + decimal.NewFromInt(id).String(), Denomination: decimal.NewFromInt(1), Active: true}
		if err := directory.SaveMachine(ctx, m); err != nil {
			t.Fatalf("save machine %d: %v", id, err)
		}
	}

	store := counterrepo.NewStore(db)
	insert := func(machineID int64, at string, in, out int64) {
		ts, err := time.ParseInLocation(itTimestamp, at, time.UTC)
		if err != nil {
			t.Fatalf("parse %s: %v", at, err)
		}
		snap := &counters.Snapshot{
			MachineID: machineID, CasinoID: itCasinoID, At: ts,
			In: decimal.NewFromInt(in), Out: decimal.NewFromInt(out),
			CreatedAt: ts, CreatedBy: itActor,
		}
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("insert snapshot: %v", err)
		}
	}
	insert(itMachineA, "2025-03-01 08:00:00", 1000, 100)
	insert(itMachineA, "2025-03-31 22:00:00", 6000, 1100)
	insert(itMachineB, "2025-03-02 08:00:00", 500, 0)
	insert(itMachineB, "2025-03-30 08:00:00", 2500, 500)

	clock := fixedClock{now: time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)}
	repo := balancerepo.NewBalanceRepository(db)
	engine, err := reconapp.NewDeltaEngine(directory, store, reconciliation.DeltaModeEndpoints)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	casinos, err := reconapp.NewCasinoReconciler(directory, engine, repo, clock)
	if err != nil {
		t.Fatalf("casino reconciler: %v", err)
	}
	machines, err := reconapp.NewMachineReconciler(engine, repo, clock)
	if err != nil {
		t.Fatalf("machine reconciler: %v", err)
	}
	balances, err := reconapp.NewBalanceService(repo, clock)
	if err != nil {
		t.Fatalf("balance service: %v", err)
	}

	period, err := reconciliation.ParsePeriod("2025-03-01", "2025-03-31", time.UTC)
	if err != nil {
		t.Fatalf("period: %v", err)
	}

	res, err := casinos.ReconcileCasino(ctx, reconapp.CasinoRequest{CasinoID: itCasinoID, Period: period, Persist: true, Lock: true, Actor: itActor})
	if err != nil {
		t.Fatalf("reconcile casino: %v", err)
	}
	if !res.Balance.Locked {
		t.Fatalf("expected locked casino balance")
	}
	if want := decimal.NewFromInt(5500); !res.Balance.Profit.Equal(want) {
		t.Fatalf("utilidad mismatch: got=%s want=%s", res.Balance.Profit, want)
	}

	_, err = casinos.ReconcileCasino(ctx, reconapp.CasinoRequest{CasinoID: itCasinoID, Period: period, Persist: true, Actor: itActor})
	if !errors.Is(err, reconciliation.ErrLockedBalance) {
		t.Fatalf("expected ErrLockedBalance, got %v", err)
	}

	stored, err := repo.GetByPeriod(ctx, reconciliation.Key{Scope: reconciliation.ScopeCasino, SubjectID: itCasinoID, Period: period})
	if err != nil || stored == nil {
		t.Fatalf("get casino balance: %v", err)
	}
	if !stored.Profit.Equal(res.Balance.Profit) || stored.LockedBy != itActor {
		t.Fatalf("stored balance changed: %+v", stored)
	}

	machineRes, err := machines.Reconcile(ctx, reconapp.MachineRequest{MachineID: itMachineA, Period: period, Persist: true, Actor: itActor})
	if err != nil {
		t.Fatalf("reconcile machine: %v", err)
	}
	if machineRes.Balance.Locked {
		t.Fatalf("machine balance must not inherit the casino lock")
	}
	locked, err := balances.Lock(ctx, reconciliation.ScopeMachine, machineRes.Balance.ID, "auditor")
	if err != nil {
		t.Fatalf("lock machine balance: %v", err)
	}
	if !locked.Locked || locked.LockedBy != "auditor" {
		t.Fatalf("unexpected lock state: %+v", locked)
	}
	again, err := balances.Lock(ctx, reconciliation.ScopeMachine, machineRes.Balance.ID, "someone-else")
	if err != nil {
		t.Fatalf("relock machine balance: %v", err)
	}
	if again.LockedBy != "auditor" {
		t.Fatalf("relock overwrote stamp: %+v", again)
	}
}

func cleanup(ctx context.Context, db *sql.DB) {
	_, _ = db.ExecContext(ctx, "DELETE FROM casino_balances WHERE casino_id = $1", itCasinoID)
	_, _ = db.ExecContext(ctx, "DELETE FROM machine_balances WHERE machine_id IN ($1, $2)", itMachineA, itMachineB)
	_, _ = db.ExecContext(ctx, "DELETE FROM counters WHERE casino_id = $1", itCasinoID)
	_, _ = db.ExecContext(ctx, "DELETE FROM machines WHERE casino_id = $1", itCasinoID)
	_, _ = db.ExecContext(ctx, "DELETE FROM casinos WHERE id = $1", itCasinoID)
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
