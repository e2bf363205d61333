package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	masterdata "casino-cuadres/internal/masterdata/domain"
	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// CasinoRequest asks for a casino balance over a period.
type CasinoRequest struct {
	CasinoID int64
	Period   reconciliation.Period
	Persist  bool
	Lock     bool
	Actor    string
}

// CasinoResult is a casino balance with its per-machine breakdown.
type CasinoResult struct {
	Casino   masterdata.Casino       `json:"casino"`
	Balance  *reconciliation.Balance `json:"balance"`
	Machines []MachineOutcome        `json:"machines"`
}

// CasinoReconciler folds every active machine of a casino into one balance.
type CasinoReconciler struct {
	directory masterdata.Directory
	engine    *DeltaEngine
	repo      reconciliation.BalanceRepository
	clock     Clock
	settings  settings
}

// NewCasinoReconciler constructs a reconciler.
func NewCasinoReconciler(directory masterdata.Directory, engine *DeltaEngine, repo reconciliation.BalanceRepository, clock Clock, opts ...Option) (*CasinoReconciler, error) {
	if directory == nil {
		return nil, errors.New("casino reconciler: nil directory")
	}
	if engine == nil {
		return nil, errors.New("casino reconciler: nil engine")
	}
	if repo == nil {
		return nil, errors.New("casino reconciler: nil repo")
	}
	if clock == nil {
		return nil, errors.New("casino reconciler: nil clock")
	}
	return &CasinoReconciler{
		directory: directory,
		engine:    engine,
		repo:      repo,
		clock:     clock,
		settings:  newSettings(opts),
	}, nil
}

// ReconcileCasino computes the casino balance. Machines without data or
// failing lookups are recorded in the breakdown and contribute zero.
func (r *CasinoReconciler) ReconcileCasino(ctx context.Context, req CasinoRequest) (*CasinoResult, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReconcile(string(reconciliation.ScopeCasino), result, time.Since(start))
	}()

	casino, outcomes, err := computeCasino(ctx, r.directory, r.engine, r.settings, req.CasinoID, req.Period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	balance, err := reconciliation.NewBalance(reconciliation.ScopeCasino, casino.ID, req.Period, foldOutcomes(outcomes), r.clock.Now(), req.Actor, req.Lock)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if req.Persist {
		balance, err = persistBalance(ctx, r.repo, balance)
		if err != nil {
			result = metrics.ResultError
			if errors.Is(err, reconciliation.ErrLockedBalance) {
				result = metrics.ResultLocked
			}
			return nil, err
		}
		r.settings.logger.Info("casino balance persisted",
			zap.Int64("casino_id", casino.ID),
			zap.String("period", req.Period.String()),
			zap.Int64("balance_id", balance.ID),
			zap.Bool("locked", balance.Locked),
			zap.Int("machines", len(outcomes)),
			zap.String("actor", req.Actor),
		)
	}
	return &CasinoResult{Casino: *casino, Balance: balance, Machines: outcomes}, nil
}

// computeCasino validates the period and casino, then fans out over its active machines.
func computeCasino(ctx context.Context, directory masterdata.Directory, engine *DeltaEngine, s settings, casinoID int64, period reconciliation.Period) (*masterdata.Casino, []MachineOutcome, error) {
	if err := checkPeriod(period); err != nil {
		return nil, nil, err
	}
	casino, err := activeCasino(ctx, directory, casinoID)
	if err != nil {
		return nil, nil, err
	}
	machines, err := directory.ListActiveMachines(ctx, casino.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("casino reconciler: list machines of casino %d: %w", casino.ID, err)
	}
	outcomes, err := fanOut(ctx, engine, machines, period, s.maxParallel, s.logger)
	if err != nil {
		return nil, nil, err
	}
	for i := range outcomes {
		outcomes[i].CasinoName = casino.Name
	}
	return casino, outcomes, nil
}

func activeCasino(ctx context.Context, directory masterdata.Directory, casinoID int64) (*masterdata.Casino, error) {
	casino, err := directory.GetCasino(ctx, casinoID)
	if err != nil {
		return nil, fmt.Errorf("get casino %d: %w", casinoID, err)
	}
	if casino == nil {
		return nil, fmt.Errorf("%w: casino %d", reconciliation.ErrNotFound, casinoID)
	}
	if !casino.Active {
		return nil, fmt.Errorf("%w: casino %d is inactive", reconciliation.ErrNotFound, casinoID)
	}
	return casino, nil
}
