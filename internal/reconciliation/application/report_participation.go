package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	masterdata "casino-cuadres/internal/masterdata/domain"
	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

var hundred = decimal.NewFromInt(100)

// ParticipationRequest asks for a percentage split over an arbitrary machine set.
type ParticipationRequest struct {
	MachineIDs []int64
	Period     reconciliation.Period
	Percentage decimal.Decimal
	Actor      string
}

// ParticipationReport is the group profit and the participation value derived from it.
type ParticipationReport struct {
	MachineIDs          []int64               `json:"machine_ids"`
	Period              reconciliation.Period `json:"period"`
	Percentage          decimal.Decimal       `json:"porcentaje_participacion"`
	Machines            []MachineOutcome      `json:"machines"`
	Totals              reconciliation.Totals `json:"totals"`
	ProfitTotal         decimal.Decimal       `json:"utilidad_total"`
	ParticipationValue  decimal.Decimal       `json:"valor_participacion"`
	TotalMachines       int                   `json:"total_machines"`
	MachinesWithData    int                   `json:"machines_with_data"`
	MachinesWithoutData int                   `json:"machines_without_data"`
	GeneratedAt         time.Time             `json:"generated_at"`
	GeneratedBy         string                `json:"generated_by"`
}

// ParticipationReport reconciles each requested machine and splits the summed profit.
// Unknown machine ids are fatal; machines without data are recorded and excluded.
func (c *ReportComposer) ParticipationReport(ctx context.Context, req ParticipationRequest) (*ParticipationReport, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReport(ReportKindParticipation, result, time.Since(start))
	}()

	if req.Percentage.IsNegative() || req.Percentage.GreaterThan(hundred) {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrInvalidPercentage, req.Percentage)
	}
	ids, err := normalizeMachineIDs(req.MachineIDs)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := checkPeriod(req.Period); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	outcomes, err := c.participationOutcomes(ctx, ids, req.Period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	totals := foldOutcomes(outcomes)
	profit := totals.Profit()
	processed, withData, withoutData := outcomeCounts(outcomes)
	return &ParticipationReport{
		MachineIDs:          ids,
		Period:              req.Period,
		Percentage:          req.Percentage,
		Machines:            outcomes,
		Totals:              totals,
		ProfitTotal:         profit,
		ParticipationValue:  profit.Mul(req.Percentage).Div(hundred),
		TotalMachines:       processed,
		MachinesWithData:    withData,
		MachinesWithoutData: withoutData,
		GeneratedAt:         c.clock.Now(),
		GeneratedBy:         req.Actor,
	}, nil
}

// participationOutcomes resolves every id before any computation so a missing
// machine aborts the report. Inactive machines are recorded, not computed.
func (c *ReportComposer) participationOutcomes(ctx context.Context, ids []int64, period reconciliation.Period) ([]MachineOutcome, error) {
	resolved := make([]*masterdata.Machine, len(ids))
	var active []masterdata.Machine
	for i, id := range ids {
		machine, err := c.directory.GetMachine(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("report composer: get machine %d: %w", id, err)
		}
		if machine == nil {
			return nil, fmt.Errorf("%w: machine %d", reconciliation.ErrNotFound, id)
		}
		resolved[i] = machine
		if machine.Active {
			active = append(active, *machine)
		}
	}

	computed, err := fanOut(ctx, c.engine, active, period, c.settings.maxParallel, c.settings.logger)
	if err != nil {
		return nil, err
	}

	names, err := c.casinoNames(ctx, resolved)
	if err != nil {
		return nil, err
	}
	outcomes := make([]MachineOutcome, 0, len(ids))
	next := 0
	for _, machine := range resolved {
		var o MachineOutcome
		if machine.Active {
			o = computed[next]
			next++
		} else {
			o = newOutcome(*machine, nil, fmt.Errorf("%w: machine %d is inactive", reconciliation.ErrNotFound, machine.ID))
		}
		o.CasinoName = names[machine.CasinoID]
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (c *ReportComposer) casinoNames(ctx context.Context, machines []*masterdata.Machine) (map[int64]string, error) {
	names := make(map[int64]string)
	for _, machine := range machines {
		if _, ok := names[machine.CasinoID]; ok {
			continue
		}
		casino, err := c.directory.GetCasino(ctx, machine.CasinoID)
		if err != nil {
			return nil, fmt.Errorf("report composer: get casino %d: %w", machine.CasinoID, err)
		}
		names[machine.CasinoID] = ""
		if casino != nil {
			names[machine.CasinoID] = casino.Name
		}
	}
	return names, nil
}

// normalizeMachineIDs rejects empty or non-positive ids and drops duplicates, keeping first occurrence.
func normalizeMachineIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty", reconciliation.ErrInvalidMachineSet)
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: id %d", reconciliation.ErrInvalidMachineSet, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
