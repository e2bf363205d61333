package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	reconapp "casino-cuadres/internal/reconciliation/application"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

var machineHeader = []string{"Machine", "Casino", "Brand", "Model", "Serial", "In", "Out", "Jackpot", "Billetero", "Profit", "Status"}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func machineRow(o reconapp.MachineOutcome) []string {
	casino := o.CasinoName
	if casino == "" {
		casino = strconv.FormatInt(o.CasinoID, 10)
	}
	return []string{
		strconv.FormatInt(o.MachineID, 10),
		casino,
		o.Brand,
		o.Model,
		o.Serial,
		money(o.Totals.In),
		money(o.Totals.Out),
		money(o.Totals.Jackpot),
		money(o.Totals.Billetero),
		money(o.Profit),
		string(o.Status),
	}
}

type pdfDoc struct {
	*gofpdf.Fpdf
}

func newPDF(title string) pdfDoc {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()
	pdf.Cell(0, 8, title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	return pdfDoc{pdf}
}

func (p pdfDoc) line(format string, args ...any) {
	p.Cell(0, 6, fmt.Sprintf(format, args...))
	p.Ln(5)
}

func (p pdfDoc) totals(t reconciliation.Totals, profit decimal.Decimal) {
	p.Ln(3)
	p.line("Total In: %s", money(t.In))
	p.line("Total Out: %s", money(t.Out))
	p.line("Total Jackpot: %s", money(t.Jackpot))
	p.line("Total Billetero: %s", money(t.Billetero))
	p.line("Profit: %s", money(profit))
	p.Ln(4)
}

func (p pdfDoc) machines(outcomes []reconapp.MachineOutcome) {
	widths := []float64{18, 40, 28, 28, 28, 22, 22, 22, 22, 24, 18}
	p.SetFont("Arial", "B", 8)
	for i, h := range machineHeader {
		p.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	p.Ln(-1)
	p.SetFont("Arial", "", 8)
	for _, o := range outcomes {
		for i, v := range machineRow(o) {
			align := "L"
			if i >= 5 && i <= 9 {
				align = "R"
			}
			p.CellFormat(widths[i], 6, v, "1", 0, align, false, 0, "")
		}
		p.Ln(-1)
	}
}

func (p pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildConsolidatedPDF renders a casino consolidated report.
func BuildConsolidatedPDF(report *reconapp.ConsolidatedReport) ([]byte, error) {
	pdf := newPDF("Consolidated Casino Report")
	pdf.line("Casino: %s (%d)", report.CasinoName, report.CasinoID)
	pdf.line("Period: %s", report.Period)
	pdf.line("Machines: %d total, %d with data, %d without data", report.TotalMachines, report.MachinesWithData, report.MachinesWithoutData)
	pdf.line("Generated: %s by %s", report.GeneratedAt.Format(time.RFC3339), report.GeneratedBy)
	pdf.totals(report.Totals, report.Profit)
	pdf.machines(report.Machines)
	return pdf.bytes()
}

// BuildFilteredPDF renders a filtered report.
func BuildFilteredPDF(report *reconapp.FilteredReport) ([]byte, error) {
	pdf := newPDF("Filtered Report")
	pdf.line("Period: %s", report.Period)
	pdf.line("Filters: %s", describeFilters(report.Filters))
	pdf.line("Shape: %s", report.Shape)
	pdf.line("Machines: %d total, %d with data, %d without data", report.TotalMachines, report.MachinesWithData, report.MachinesWithoutData)
	pdf.totals(report.Totals, report.Profit)
	if len(report.Casinos) > 0 {
		pdf.SetFont("Arial", "B", 9)
		for _, h := range []string{"Casino", "City", "Machines", "Profit"} {
			pdf.CellFormat(45, 6, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, c := range report.Casinos {
			pdf.CellFormat(45, 6, c.CasinoName, "1", 0, "L", false, 0, "")
			pdf.CellFormat(45, 6, c.City, "1", 0, "L", false, 0, "")
			pdf.CellFormat(45, 6, strconv.Itoa(c.Machines), "1", 0, "R", false, 0, "")
			pdf.CellFormat(45, 6, money(c.Profit), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}
	if len(report.Machines) > 0 {
		pdf.machines(report.Machines)
	}
	return pdf.bytes()
}

// BuildParticipationPDF renders a participation report.
func BuildParticipationPDF(report *reconapp.ParticipationReport) ([]byte, error) {
	pdf := newPDF("Participation Report")
	pdf.line("Period: %s", report.Period)
	pdf.line("Participation: %s%%", report.Percentage.String())
	pdf.line("Machines: %d total, %d with data, %d without data", report.TotalMachines, report.MachinesWithData, report.MachinesWithoutData)
	pdf.line("Generated: %s by %s", report.GeneratedAt.Format(time.RFC3339), report.GeneratedBy)
	pdf.totals(report.Totals, report.ProfitTotal)
	pdf.line("Participation value: %s", money(report.ParticipationValue))
	pdf.Ln(4)
	pdf.machines(report.Machines)
	return pdf.bytes()
}

type workbook struct {
	*excelize.File
}

func newWorkbook() workbook {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "summary")
	return workbook{f}
}

func (w workbook) pairs(sheet string, rows [][2]any) {
	for i, kv := range rows {
		_ = w.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = w.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
}

func (w workbook) table(sheet string, header []string, rows [][]string) {
	_, _ = w.NewSheet(sheet)
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = w.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = w.SetCellValue(sheet, cell, v)
		}
	}
}

func (w workbook) machines(outcomes []reconapp.MachineOutcome) {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, machineRow(o))
	}
	w.table("machines", machineHeader, rows)
}

func (w workbook) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func totalsPairs(t reconciliation.Totals, profit decimal.Decimal) [][2]any {
	return [][2]any{
		{"Total In", money(t.In)},
		{"Total Out", money(t.Out)},
		{"Total Jackpot", money(t.Jackpot)},
		{"Total Billetero", money(t.Billetero)},
		{"Profit", money(profit)},
	}
}

// BuildConsolidatedXLSX renders a casino consolidated report.
func BuildConsolidatedXLSX(report *reconapp.ConsolidatedReport) ([]byte, error) {
	w := newWorkbook()
	rows := [][2]any{
		{"Consolidated Casino Report", ""},
		{"Casino", report.CasinoName},
		{"Casino ID", report.CasinoID},
		{"Period", report.Period.String()},
		{"Total machines", report.TotalMachines},
		{"Machines with data", report.MachinesWithData},
		{"Machines without data", report.MachinesWithoutData},
		{"Generated by", report.GeneratedBy},
	}
	w.pairs("summary", append(rows, totalsPairs(report.Totals, report.Profit)...))
	w.machines(report.Machines)
	return w.bytes()
}

// BuildFilteredXLSX renders a filtered report.
func BuildFilteredXLSX(report *reconapp.FilteredReport) ([]byte, error) {
	w := newWorkbook()
	rows := [][2]any{
		{"Filtered Report", ""},
		{"Period", report.Period.String()},
		{"Filters", describeFilters(report.Filters)},
		{"Shape", string(report.Shape)},
		{"Total machines", report.TotalMachines},
		{"Machines with data", report.MachinesWithData},
		{"Machines without data", report.MachinesWithoutData},
	}
	w.pairs("summary", append(rows, totalsPairs(report.Totals, report.Profit)...))
	if len(report.Casinos) > 0 {
		casinos := make([][]string, 0, len(report.Casinos))
		for _, c := range report.Casinos {
			casinos = append(casinos, []string{
				strconv.FormatInt(c.CasinoID, 10), c.CasinoName, c.City,
				strconv.Itoa(c.Machines), strconv.Itoa(c.MachinesWithData), money(c.Profit),
			})
		}
		w.table("casinos", []string{"Casino ID", "Casino", "City", "Machines", "With data", "Profit"}, casinos)
	}
	if len(report.Machines) > 0 {
		w.machines(report.Machines)
	}
	return w.bytes()
}

// BuildParticipationXLSX renders a participation report.
func BuildParticipationXLSX(report *reconapp.ParticipationReport) ([]byte, error) {
	w := newWorkbook()
	rows := [][2]any{
		{"Participation Report", ""},
		{"Period", report.Period.String()},
		{"Participation %", report.Percentage.String()},
		{"Total machines", report.TotalMachines},
		{"Machines with data", report.MachinesWithData},
		{"Machines without data", report.MachinesWithoutData},
	}
	rows = append(rows, totalsPairs(report.Totals, report.ProfitTotal)...)
	rows = append(rows, [2]any{"Participation value", money(report.ParticipationValue)})
	w.pairs("summary", rows)
	w.machines(report.Machines)
	return w.bytes()
}

// BuildFilteredCSV renders the machine rows of a filtered report, or a single
// totals row when the report carries no machine detail.
func BuildFilteredCSV(report *reconapp.FilteredReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	switch {
	case len(report.Machines) > 0:
		_ = w.Write(machineHeader)
		for _, o := range report.Machines {
			_ = w.Write(machineRow(o))
		}
	default:
		_ = w.Write([]string{"In", "Out", "Jackpot", "Billetero", "Profit", "Machines", "With data"})
		_ = w.Write([]string{
			money(report.Totals.In), money(report.Totals.Out), money(report.Totals.Jackpot), money(report.Totals.Billetero),
			money(report.Profit), strconv.Itoa(report.TotalMachines), strconv.Itoa(report.MachinesWithData),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func describeFilters(f reconapp.Filters) string {
	out := ""
	add := func(k, v string) {
		if v == "" {
			return
		}
		if out != "" {
			out += ", "
		}
		out += k + "=" + v
	}
	if f.CasinoID > 0 {
		add("casino", strconv.FormatInt(f.CasinoID, 10))
	}
	add("brand", f.Brand)
	add("model", f.Model)
	add("city", f.City)
	if out == "" {
		return "none"
	}
	return out
}
