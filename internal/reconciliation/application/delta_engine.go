package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	counters "casino-cuadres/internal/counters/domain"
	masterdata "casino-cuadres/internal/masterdata/domain"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// DeltaEngine turns a machine's counter snapshots into period totals.
type DeltaEngine struct {
	directory masterdata.Directory
	store     counters.Store
	mode      reconciliation.DeltaMode
}

// NewDeltaEngine constructs an engine. An empty mode means endpoints.
func NewDeltaEngine(directory masterdata.Directory, store counters.Store, mode reconciliation.DeltaMode) (*DeltaEngine, error) {
	if directory == nil {
		return nil, errors.New("delta engine: nil directory")
	}
	if store == nil {
		return nil, errors.New("delta engine: nil counter store")
	}
	mode, err := reconciliation.ParseDeltaMode(string(mode))
	if err != nil {
		return nil, err
	}
	return &DeltaEngine{directory: directory, store: store, mode: mode}, nil
}

// Mode returns the configured delta mode.
func (e *DeltaEngine) Mode() reconciliation.DeltaMode { return e.mode }

// ComputeDelta resolves an active machine and computes its totals for period.
func (e *DeltaEngine) ComputeDelta(ctx context.Context, machineID int64, period reconciliation.Period) (*reconciliation.Delta, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	machine, err := e.activeMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	return e.ComputeForMachine(ctx, *machine, period)
}

// ComputeForMachine computes totals for an already resolved machine.
func (e *DeltaEngine) ComputeForMachine(ctx context.Context, machine masterdata.Machine, period reconciliation.Period) (*reconciliation.Delta, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	from, to := period.Range()
	snaps, err := e.store.ListInRange(ctx, machine.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("delta engine: list counters of machine %d: %w", machine.ID, err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: machine %d in %s", reconciliation.ErrNoData, machine.ID, period)
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].At.Before(snaps[j].At) })

	first, last := snaps[0], snaps[len(snaps)-1]
	delta := &reconciliation.Delta{
		MachineID:     machine.ID,
		Period:        period,
		Mode:          e.mode,
		Denomination:  machine.Scale(),
		First:         &first,
		Last:          &last,
		SnapshotCount: len(snaps),
	}

	switch e.mode {
	case reconciliation.DeltaModeSum:
		for _, snap := range snaps {
			delta.Totals = delta.Totals.Add(reconciliation.SnapshotTotals(snap))
		}
	default:
		delta.Totals = reconciliation.SnapshotTotals(last).
			Sub(reconciliation.SnapshotTotals(first)).
			Scale(delta.Denomination)
	}
	// profit is derived from the rounded totals so it matches what is stored
	delta.Totals = delta.Totals.Round(reconciliation.MoneyPlaces)
	return delta, nil
}

func (e *DeltaEngine) activeMachine(ctx context.Context, machineID int64) (*masterdata.Machine, error) {
	machine, err := e.directory.GetMachine(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("delta engine: get machine %d: %w", machineID, err)
	}
	if machine == nil {
		return nil, fmt.Errorf("%w: machine %d", reconciliation.ErrNotFound, machineID)
	}
	if !machine.Active {
		return nil, fmt.Errorf("%w: machine %d is inactive", reconciliation.ErrNotFound, machineID)
	}
	return machine, nil
}

func checkPeriod(period reconciliation.Period) error {
	if period.Start.IsZero() || period.End.IsZero() {
		return fmt.Errorf("%w: empty bound", reconciliation.ErrInvalidPeriod)
	}
	if period.Start.After(period.End) {
		return fmt.Errorf("%w: %s", reconciliation.ErrInvalidPeriod, period)
	}
	return nil
}
