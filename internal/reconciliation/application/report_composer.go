package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	masterdata "casino-cuadres/internal/masterdata/domain"
	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// Report kinds, used as metric labels and export titles.
const (
	ReportKindConsolidated  = "consolidated"
	ReportKindFiltered      = "filtered"
	ReportKindParticipation = "participation"
)

// ReportComposer builds read-only reports. It never persists or locks.
type ReportComposer struct {
	directory masterdata.Directory
	engine    *DeltaEngine
	clock     Clock
	settings  settings
}

// NewReportComposer constructs a composer.
func NewReportComposer(directory masterdata.Directory, engine *DeltaEngine, clock Clock, opts ...Option) (*ReportComposer, error) {
	if directory == nil {
		return nil, errors.New("report composer: nil directory")
	}
	if engine == nil {
		return nil, errors.New("report composer: nil engine")
	}
	if clock == nil {
		return nil, errors.New("report composer: nil clock")
	}
	return &ReportComposer{directory: directory, engine: engine, clock: clock, settings: newSettings(opts)}, nil
}

// ConsolidatedReport is a casino reconciliation shaped for presentation.
type ConsolidatedReport struct {
	CasinoID            int64                 `json:"casino_id"`
	CasinoName          string                `json:"casino_nombre"`
	Period              reconciliation.Period `json:"period"`
	Machines            []MachineOutcome      `json:"machines_summary"`
	Totals              reconciliation.Totals `json:"category_totals"`
	Profit              decimal.Decimal       `json:"utilidad_final"`
	TotalMachines       int                   `json:"total_machines"`
	MachinesProcessed   int                   `json:"machines_processed"`
	MachinesWithData    int                   `json:"machines_with_data"`
	MachinesWithoutData int                   `json:"machines_without_data"`
	GeneratedAt         time.Time             `json:"generated_at"`
	GeneratedBy         string                `json:"generated_by"`
}

// ConsolidatedReport reconciles every active machine of a casino without persisting.
func (c *ReportComposer) ConsolidatedReport(ctx context.Context, casinoID int64, period reconciliation.Period, actor string) (*ConsolidatedReport, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReport(ReportKindConsolidated, result, time.Since(start))
	}()

	casino, outcomes, err := computeCasino(ctx, c.directory, c.engine, c.settings, casinoID, period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	totals := foldOutcomes(outcomes)
	processed, withData, withoutData := outcomeCounts(outcomes)
	return &ConsolidatedReport{
		CasinoID:            casino.ID,
		CasinoName:          casino.Name,
		Period:              period,
		Machines:            outcomes,
		Totals:              totals,
		Profit:              totals.Profit(),
		TotalMachines:       len(outcomes),
		MachinesProcessed:   processed,
		MachinesWithData:    withData,
		MachinesWithoutData: withoutData,
		GeneratedAt:         c.clock.Now(),
		GeneratedBy:         actor,
	}, nil
}
