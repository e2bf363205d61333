package interfaces

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	reconapp "casino-cuadres/internal/reconciliation/application"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

func exportPeriod(t *testing.T) reconciliation.Period {
	t.Helper()
	p, err := reconciliation.ParsePeriod("2024-01-01", "2024-01-31", time.UTC)
	require.NoError(t, err)
	return p
}

func exportOutcomes() []reconapp.MachineOutcome {
	totals := reconciliation.Totals{
		In:        decimal.NewFromInt(1000),
		Out:       decimal.NewFromInt(250),
		Jackpot:   decimal.NewFromInt(50),
		Billetero: decimal.NewFromInt(900),
	}
	return []reconapp.MachineOutcome{
		{MachineID: 7, CasinoID: 1, CasinoName: "Casino Centro", Brand: "IGT", Model: "S2000", Serial: "SN-7", Totals: totals, Profit: totals.Profit(), Status: reconapp.OutcomeOK},
		{MachineID: 8, CasinoID: 1, Brand: "Konami", Serial: "SN-8", Status: reconapp.OutcomeNoData},
	}
}

func consolidatedFixture(t *testing.T) *reconapp.ConsolidatedReport {
	outcomes := exportOutcomes()
	return &reconapp.ConsolidatedReport{
		CasinoID:            1,
		CasinoName:          "Casino Centro",
		Period:              exportPeriod(t),
		Machines:            outcomes,
		Totals:              outcomes[0].Totals,
		Profit:              outcomes[0].Profit,
		TotalMachines:       2,
		MachinesProcessed:   2,
		MachinesWithData:    1,
		MachinesWithoutData: 1,
		GeneratedAt:         time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		GeneratedBy:         "ana",
	}
}

func TestBuildConsolidatedPDF(t *testing.T) {
	data, err := BuildConsolidatedPDF(consolidatedFixture(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestBuildConsolidatedXLSX(t *testing.T) {
	data, err := BuildConsolidatedXLSX(consolidatedFixture(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Casino Centro", name)

	rows, err := f.GetRows("summary")
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, []string{"Profit", "700.00"}, last)

	machines, err := f.GetRows("machines")
	require.NoError(t, err)
	require.Len(t, machines, 3)
	assert.Equal(t, machineHeader, machines[0])
	assert.Equal(t, "7", machines[1][0])
	assert.Equal(t, "no_data", machines[2][len(machineHeader)-1])
	// unnamed casinos fall back to the id
	assert.Equal(t, "1", machines[2][1])
}

func TestBuildFilteredExports(t *testing.T) {
	outcomes := exportOutcomes()
	report := &reconapp.FilteredReport{
		Period:        exportPeriod(t),
		Filters:       reconapp.Filters{Brand: "IGT", City: "Bogota"},
		Shape:         reconapp.ShapeDetailed,
		Totals:        outcomes[0].Totals,
		Profit:        outcomes[0].Profit,
		TotalMachines: 2,
		Casinos: []reconapp.CasinoSubtotal{
			{CasinoID: 1, CasinoName: "Casino Centro", City: "Bogota", Totals: outcomes[0].Totals, Profit: outcomes[0].Profit, Machines: 2, MachinesWithData: 1},
		},
		Machines: outcomes,
	}

	pdf, err := BuildFilteredPDF(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	xlsx, err := BuildFilteredXLSX(report)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsx))
	require.NoError(t, err)
	defer f.Close()
	casinos, err := f.GetRows("casinos")
	require.NoError(t, err)
	require.Len(t, casinos, 2)
	assert.Equal(t, "700.00", casinos[1][5])

	data, err := BuildFilteredCSV(report)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, machineHeader, records[0])
	assert.Equal(t, "700.00", records[1][9])
}

func TestBuildFilteredCSVSummary(t *testing.T) {
	report := &reconapp.FilteredReport{
		Period: exportPeriod(t),
		Shape:  reconapp.ShapeSummary,
		Totals: reconciliation.Totals{
			In:  decimal.NewFromInt(10),
			Out: decimal.NewFromInt(4),
		},
		Profit:           decimal.NewFromInt(6),
		TotalMachines:    3,
		MachinesWithData: 2,
	}
	data, err := BuildFilteredCSV(report)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"10.00", "4.00", "0.00", "0.00", "6.00", "3", "2"}, records[1])
}

func TestBuildParticipationExports(t *testing.T) {
	outcomes := exportOutcomes()
	report := &reconapp.ParticipationReport{
		MachineIDs:          []int64{7, 8},
		Period:              exportPeriod(t),
		Percentage:          decimal.NewFromInt(25),
		Machines:            outcomes,
		Totals:              outcomes[0].Totals,
		ProfitTotal:         outcomes[0].Profit,
		ParticipationValue:  decimal.NewFromInt(175),
		TotalMachines:       2,
		MachinesWithData:    1,
		MachinesWithoutData: 1,
		GeneratedBy:         "ana",
	}

	pdf, err := BuildParticipationPDF(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	xlsx, err := BuildParticipationXLSX(report)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsx))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Participation value", "175.00"}, rows[len(rows)-1])
}

func TestDescribeFilters(t *testing.T) {
	assert.Equal(t, "none", describeFilters(reconapp.Filters{}))
	assert.Contains(t, describeFilters(reconapp.Filters{CasinoID: 3, Brand: "IGT"}), "IGT")
}
