package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	masterdata "casino-cuadres/internal/masterdata/domain"
	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// ReportShape controls how much per-machine detail a filtered report carries.
type ReportShape string

const (
	ShapeDetailed     ReportShape = "detailed"
	ShapeConsolidated ReportShape = "consolidated"
	ShapeSummary      ReportShape = "summary"
)

// ParseReportShape validates a shape name. Empty means detailed.
func ParseReportShape(value string) (ReportShape, error) {
	switch ReportShape(strings.ToLower(strings.TrimSpace(value))) {
	case "", ShapeDetailed:
		return ShapeDetailed, nil
	case ShapeConsolidated:
		return ShapeConsolidated, nil
	case ShapeSummary:
		return ShapeSummary, nil
	default:
		return "", fmt.Errorf("report composer: unknown shape %q", value)
	}
}

// Filters narrows the machine population of a filtered report.
// Zero values match everything.
type Filters struct {
	CasinoID int64  `json:"casino_id,omitempty"`
	Brand    string `json:"marca,omitempty"`
	Model    string `json:"modelo,omitempty"`
	City     string `json:"ciudad,omitempty"`
}

// CasinoSubtotal is one casino's share of a filtered report.
type CasinoSubtotal struct {
	CasinoID         int64                 `json:"casino_id"`
	CasinoName       string                `json:"casino_nombre"`
	City             string                `json:"ciudad"`
	Totals           reconciliation.Totals `json:"totals"`
	Profit           decimal.Decimal       `json:"utilidad"`
	Machines         int                   `json:"machines"`
	MachinesWithData int                   `json:"machines_with_data"`
}

// FilteredReport aggregates the filtered machine population across casinos.
type FilteredReport struct {
	Period              reconciliation.Period `json:"period"`
	Filters             Filters               `json:"filters"`
	Shape               ReportShape           `json:"tipo_reporte"`
	Totals              reconciliation.Totals `json:"totals"`
	Profit              decimal.Decimal       `json:"utilidad_total"`
	TotalMachines       int                   `json:"total_machines"`
	MachinesWithData    int                   `json:"machines_with_data"`
	MachinesWithoutData int                   `json:"machines_without_data"`
	Casinos             []CasinoSubtotal      `json:"casinos,omitempty"`
	Machines            []MachineOutcome      `json:"machines,omitempty"`
	GeneratedAt         time.Time             `json:"generated_at"`
}

// FilteredReport reconciles every machine matching filters and folds the
// totals across the whole population. Shape only trims the output.
func (c *ReportComposer) FilteredReport(ctx context.Context, period reconciliation.Period, filters Filters, shape ReportShape) (*FilteredReport, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReport(ReportKindFiltered, result, time.Since(start))
	}()

	shape, err := ParseReportShape(string(shape))
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := checkPeriod(period); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	casinos, err := c.candidateCasinos(ctx, filters)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	var machines []masterdata.Machine
	names := make(map[int64]string, len(casinos))
	for _, casino := range casinos {
		names[casino.ID] = casino.Name
		list, err := c.directory.ListActiveMachines(ctx, casino.ID)
		if err != nil {
			result = metrics.ResultError
			return nil, fmt.Errorf("report composer: list machines of casino %d: %w", casino.ID, err)
		}
		for _, m := range list {
			if matchesText(m.Brand, filters.Brand) && matchesText(m.Model, filters.Model) {
				machines = append(machines, m)
			}
		}
	}
	if c.settings.maxMachines > 0 && len(machines) > c.settings.maxMachines {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: %d exceeds %d", reconciliation.ErrTooManyMachines, len(machines), c.settings.maxMachines)
	}

	outcomes, err := fanOut(ctx, c.engine, machines, period, c.settings.maxParallel, c.settings.logger)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	for i := range outcomes {
		outcomes[i].CasinoName = names[outcomes[i].CasinoID]
	}

	totals := foldOutcomes(outcomes)
	processed, withData, withoutData := outcomeCounts(outcomes)
	report := &FilteredReport{
		Period:              period,
		Filters:             filters,
		Shape:               shape,
		Totals:              totals,
		Profit:              totals.Profit(),
		TotalMachines:       processed,
		MachinesWithData:    withData,
		MachinesWithoutData: withoutData,
		GeneratedAt:         c.clock.Now(),
	}

	switch shape {
	case ShapeDetailed:
		report.Casinos = subtotals(casinos, outcomes)
		report.Machines = outcomes
	case ShapeConsolidated:
		report.Casinos = subtotals(casinos, outcomes)
		report.Machines = withoutSnapshots(outcomes)
	}
	return report, nil
}

func (c *ReportComposer) candidateCasinos(ctx context.Context, filters Filters) ([]masterdata.Casino, error) {
	var casinos []masterdata.Casino
	if filters.CasinoID > 0 {
		casino, err := activeCasino(ctx, c.directory, filters.CasinoID)
		if err != nil {
			return nil, err
		}
		casinos = []masterdata.Casino{*casino}
	} else {
		list, err := c.directory.ListActiveCasinos(ctx)
		if err != nil {
			return nil, fmt.Errorf("report composer: list casinos: %w", err)
		}
		casinos = list
	}

	out := casinos[:0:0]
	for _, casino := range casinos {
		if matchesText(casino.City, filters.City) {
			out = append(out, casino)
		}
	}
	return out, nil
}

// subtotals groups outcomes by casino, keeping the candidate order.
func subtotals(casinos []masterdata.Casino, outcomes []MachineOutcome) []CasinoSubtotal {
	index := make(map[int64]int, len(casinos))
	out := make([]CasinoSubtotal, 0, len(casinos))
	for _, casino := range casinos {
		index[casino.ID] = len(out)
		out = append(out, CasinoSubtotal{CasinoID: casino.ID, CasinoName: casino.Name, City: casino.City})
	}
	for _, o := range outcomes {
		i, ok := index[o.CasinoID]
		if !ok {
			continue
		}
		out[i].Machines++
		if o.HasData() {
			out[i].MachinesWithData++
			out[i].Totals = out[i].Totals.Add(o.Totals)
		}
	}
	for i := range out {
		out[i].Profit = out[i].Totals.Profit()
	}
	return out
}

func withoutSnapshots(outcomes []MachineOutcome) []MachineOutcome {
	out := make([]MachineOutcome, len(outcomes))
	for i, o := range outcomes {
		o.First = nil
		o.Last = nil
		out[i] = o
	}
	return out
}

// matchesText compares trimmed values case-insensitively. An empty want matches anything.
func matchesText(have, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(have), want)
}
