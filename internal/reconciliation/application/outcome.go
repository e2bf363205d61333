package application

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	counters "casino-cuadres/internal/counters/domain"
	masterdata "casino-cuadres/internal/masterdata/domain"
	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// OutcomeStatus is the result class of one machine inside a fan-out.
type OutcomeStatus string

const (
	OutcomeOK     OutcomeStatus = "ok"
	OutcomeNoData OutcomeStatus = "no_data"
	OutcomeError  OutcomeStatus = "error"
)

// MachineOutcome is one machine's row in a multi-machine result.
type MachineOutcome struct {
	MachineID     int64                 `json:"machine_id"`
	CasinoID      int64                 `json:"casino_id"`
	CasinoName    string                `json:"casino_nombre,omitempty"`
	Brand         string                `json:"machine_marca"`
	Model         string                `json:"machine_modelo"`
	Serial        string                `json:"machine_serial"`
	Asset         string                `json:"machine_asset"`
	Denomination  decimal.Decimal       `json:"denominacion"`
	Totals        reconciliation.Totals `json:"totals"`
	Profit        decimal.Decimal       `json:"utilidad"`
	Status        OutcomeStatus         `json:"status"`
	ErrorKind     reconciliation.Kind   `json:"error_kind,omitempty"`
	Error         string                `json:"error,omitempty"`
	First         *counters.Snapshot    `json:"contador_inicial,omitempty"`
	Last          *counters.Snapshot    `json:"contador_final,omitempty"`
	SnapshotCount int                   `json:"snapshot_count"`
}

// HasData reports whether the machine contributed totals.
func (o MachineOutcome) HasData() bool { return o.Status == OutcomeOK }

func newOutcome(machine masterdata.Machine, delta *reconciliation.Delta, err error) MachineOutcome {
	out := MachineOutcome{
		MachineID: machine.ID,
		CasinoID:  machine.CasinoID,
		Brand:     machine.Brand,
		Model:     machine.Model,
		Serial:    machine.Serial,
		Asset:     machine.Asset,
	}
	if err != nil {
		out.Status = OutcomeError
		out.ErrorKind = reconciliation.KindOf(err)
		if out.ErrorKind == reconciliation.KindNoData {
			out.Status = OutcomeNoData
		}
		out.Error = err.Error()
		return out
	}
	out.Status = OutcomeOK
	out.Denomination = delta.Denomination
	out.Totals = delta.Totals
	out.Profit = delta.Totals.Profit()
	out.First = delta.First
	out.Last = delta.Last
	out.SnapshotCount = delta.SnapshotCount
	return out
}

// fanOut computes every machine with bounded parallelism. Per-machine
// failures land in the outcome; only caller cancellation aborts.
func fanOut(ctx context.Context, engine *DeltaEngine, machines []masterdata.Machine, period reconciliation.Period, limit int, logger *zap.Logger) ([]MachineOutcome, error) {
	outcomes := make([]MachineOutcome, len(machines))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, machine := range machines {
		i, machine := i, machine
		g.Go(func() error {
			delta, err := engine.ComputeForMachine(ctx, machine, period)
			outcomes[i] = newOutcome(machine, delta, err)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		metrics.IncMachineOutcome(string(o.Status))
		if o.Status == OutcomeError {
			logger.Warn("machine reconcile failed",
				zap.Int64("machine_id", o.MachineID),
				zap.String("kind", string(o.ErrorKind)),
				zap.String("error", o.Error),
			)
		}
	}
	return outcomes, nil
}

// foldOutcomes sums the totals of machines with data.
func foldOutcomes(outcomes []MachineOutcome) reconciliation.Totals {
	var sum reconciliation.Totals
	for _, o := range outcomes {
		if o.HasData() {
			sum = sum.Add(o.Totals)
		}
	}
	return sum
}

// outcomeCounts tallies outcomes: processed, with data, without data.
func outcomeCounts(outcomes []MachineOutcome) (int, int, int) {
	withData := 0
	for _, o := range outcomes {
		if o.HasData() {
			withData++
		}
	}
	return len(outcomes), withData, len(outcomes) - withData
}
