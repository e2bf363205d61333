package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// MachineRequest asks for one machine's balance over a period.
type MachineRequest struct {
	MachineID int64
	Period    reconciliation.Period
	Persist   bool
	Lock      bool
	Actor     string
}

// MachineResult is a machine balance plus the delta it was computed from.
type MachineResult struct {
	Balance *reconciliation.Balance `json:"balance"`
	Delta   *reconciliation.Delta   `json:"delta"`
}

// MachineReconciler reconciles a single machine.
type MachineReconciler struct {
	engine *DeltaEngine
	repo   reconciliation.BalanceRepository
	clock  Clock
	logger *zap.Logger
}

// NewMachineReconciler constructs a reconciler.
func NewMachineReconciler(engine *DeltaEngine, repo reconciliation.BalanceRepository, clock Clock, opts ...Option) (*MachineReconciler, error) {
	if engine == nil {
		return nil, errors.New("machine reconciler: nil engine")
	}
	if repo == nil {
		return nil, errors.New("machine reconciler: nil repo")
	}
	if clock == nil {
		return nil, errors.New("machine reconciler: nil clock")
	}
	s := newSettings(opts)
	return &MachineReconciler{engine: engine, repo: repo, clock: clock, logger: s.logger}, nil
}

// Reconcile computes the machine balance and, when asked, persists it.
// Persisting fails with ErrLockedBalance if the stored row is locked.
func (r *MachineReconciler) Reconcile(ctx context.Context, req MachineRequest) (*MachineResult, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReconcile(string(reconciliation.ScopeMachine), result, time.Since(start))
	}()

	delta, err := r.engine.ComputeDelta(ctx, req.MachineID, req.Period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	balance, err := reconciliation.NewBalance(reconciliation.ScopeMachine, req.MachineID, req.Period, delta.Totals, r.clock.Now(), req.Actor, req.Lock)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if !req.Persist {
		return &MachineResult{Balance: balance, Delta: delta}, nil
	}

	stored, err := persistBalance(ctx, r.repo, balance)
	if err != nil {
		result = metrics.ResultError
		if errors.Is(err, reconciliation.ErrLockedBalance) {
			result = metrics.ResultLocked
		}
		return nil, err
	}
	r.logger.Info("machine balance persisted",
		zap.Int64("machine_id", req.MachineID),
		zap.String("period", req.Period.String()),
		zap.Int64("balance_id", stored.ID),
		zap.Bool("locked", stored.Locked),
		zap.String("actor", req.Actor),
	)
	return &MachineResult{Balance: stored, Delta: delta}, nil
}

// persistBalance refuses to touch a locked row, then upserts. The repository
// upsert repeats the lock check atomically.
func persistBalance(ctx context.Context, repo reconciliation.BalanceRepository, balance *reconciliation.Balance) (*reconciliation.Balance, error) {
	existing, err := repo.GetByPeriod(ctx, balance.Key())
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Locked {
		return nil, fmt.Errorf("%w: %s balance %d", reconciliation.ErrLockedBalance, balance.Scope, existing.ID)
	}
	return repo.Upsert(ctx, balance)
}
