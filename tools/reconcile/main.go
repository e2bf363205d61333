package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"casino-cuadres/internal/config"
	counterrepo "casino-cuadres/internal/counters/infrastructure/postgres"
	masterdatarepo "casino-cuadres/internal/masterdata/infrastructure/postgres"
	reconapp "casino-cuadres/internal/reconciliation/application"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
	balancerepo "casino-cuadres/internal/reconciliation/infrastructure/postgres"
)

type options struct {
	dbURL       string
	casinoID    int64
	start       string
	end         string
	mode        string
	timezone    string
	outDir      string
	legacyPath  string
	maxParallel int
}

type machineRow struct {
	MachineID int64
	Status    string
	Totals    reconciliation.Totals
	Profit    decimal.Decimal
	Stored    *reconciliation.Balance
}

type legacyRow struct {
	MachineID int64
	Profit    decimal.Decimal
}

func main() {
	defaults, err := config.Read()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	opts, err := parseFlags(os.Args[1:], defaults)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	period, loc, err := opts.period()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	mode, err := reconciliation.ParseDeltaMode(opts.mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", opts.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	directory := masterdatarepo.NewDirectory(db)
	repo := balancerepo.NewBalanceRepository(db)
	engine, err := reconapp.NewDeltaEngine(directory, counterrepo.NewStore(db), mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "delta engine:", err)
		os.Exit(2)
	}
	composer, err := reconapp.NewReportComposer(directory, engine, reconapp.SystemClock{Location: loc}, reconapp.WithMaxParallel(opts.maxParallel))
	if err != nil {
		fmt.Fprintln(os.Stderr, "report composer:", err)
		os.Exit(2)
	}

	report, err := composer.ConsolidatedReport(ctx, opts.casinoID, period, "reconcile-tool")
	if err != nil {
		fmt.Fprintln(os.Stderr, "consolidated report:", err)
		os.Exit(2)
	}

	rows, err := loadMachineRows(ctx, repo, report.Machines, period)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load machine balances:", err)
		os.Exit(2)
	}
	storedCasino, err := repo.GetByPeriod(ctx, reconciliation.Key{Scope: reconciliation.ScopeCasino, SubjectID: opts.casinoID, Period: period})
	if err != nil {
		fmt.Fprintln(os.Stderr, "load casino balance:", err)
		os.Exit(2)
	}

	if err := writeMachineRows(opts.outDir, rows); err != nil {
		fmt.Fprintln(os.Stderr, "write machines:", err)
		os.Exit(2)
	}
	if err := writeCasinoSummary(opts.outDir, report, storedCasino); err != nil {
		fmt.Fprintln(os.Stderr, "write casino summary:", err)
		os.Exit(2)
	}

	if opts.legacyPath != "" {
		legacy, err := loadLegacy(opts.legacyPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load legacy cuadres:", err)
			os.Exit(2)
		}
		if err := writeDiffReport(opts.outDir, rows, legacy); err != nil {
			fmt.Fprintln(os.Stderr, "write diff report:", err)
			os.Exit(2)
		}
	}

	fmt.Printf("Reconciliation outputs written to %s\n", opts.outDir)
}

// parseFlags reads the command line. Defaults come from the same merged
// environment and CUADRE_CONFIG file the server uses.
func parseFlags(args []string, defaults config.Config) (options, error) {
	var opts options
	var casino string
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.StringVar(&opts.dbURL, "db", defaults.DatabaseURL, "Postgres DSN")
	fs.StringVar(&casino, "casino", "", "casino id")
	fs.StringVar(&opts.start, "start", "", "period start (YYYY-MM-DD)")
	fs.StringVar(&opts.end, "end", "", "period end, inclusive (YYYY-MM-DD)")
	fs.StringVar(&opts.mode, "mode", defaults.Engine.DeltaMode, "delta mode (endpoints|sum)")
	fs.StringVar(&opts.timezone, "tz", defaults.Engine.Timezone, "timezone of the period dates")
	fs.StringVar(&opts.outDir, "out", "./out", "output directory")
	fs.StringVar(&opts.legacyPath, "legacy-csv", "", "legacy cuadre CSV (machine_id,utilidad) to diff against (optional)")
	fs.IntVar(&opts.maxParallel, "parallel", defaults.Engine.MaxParallel, "concurrent machine computations")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.dbURL == "" {
		return opts, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	id, err := strconv.ParseInt(casino, 10, 64)
	if err != nil || id <= 0 {
		return opts, errors.New("missing or invalid --casino")
	}
	opts.casinoID = id
	if opts.start == "" || opts.end == "" {
		return opts, errors.New("missing --start/--end (YYYY-MM-DD)")
	}
	return opts, nil
}

// period parses the bounds as civil dates in the configured timezone.
func (o options) period() (reconciliation.Period, *time.Location, error) {
	loc, err := config.Engine{Timezone: o.timezone}.Location()
	if err != nil {
		return reconciliation.Period{}, nil, err
	}
	period, err := reconciliation.ParsePeriod(o.start, o.end, loc)
	if err != nil {
		return reconciliation.Period{}, nil, err
	}
	return period, loc, nil
}

func loadMachineRows(ctx context.Context, repo *balancerepo.BalanceRepository, outcomes []reconapp.MachineOutcome, period reconciliation.Period) ([]machineRow, error) {
	rows := make([]machineRow, 0, len(outcomes))
	for _, o := range outcomes {
		stored, err := repo.GetByPeriod(ctx, reconciliation.Key{Scope: reconciliation.ScopeMachine, SubjectID: o.MachineID, Period: period})
		if err != nil {
			return nil, fmt.Errorf("machine %d: %w", o.MachineID, err)
		}
		rows = append(rows, machineRow{
			MachineID: o.MachineID,
			Status:    string(o.Status),
			Totals:    o.Totals,
			Profit:    o.Profit,
			Stored:    stored,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MachineID < rows[j].MachineID })
	return rows, nil
}

func writeMachineRows(outDir string, rows []machineRow) error {
	f, err := os.Create(filepath.Join(outDir, "machines.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"machine_id", "status", "in", "out", "jackpot", "billetero", "utilidad", "stored_utilidad", "stored_locked", "match"})
	for _, r := range rows {
		storedProfit, locked, match := "", "", ""
		if r.Stored != nil {
			storedProfit = r.Stored.Profit.StringFixed(2)
			locked = strconv.FormatBool(r.Stored.Locked)
			match = strconv.FormatBool(r.Stored.Profit.Equal(r.Profit))
		}
		_ = w.Write([]string{
			strconv.FormatInt(r.MachineID, 10),
			r.Status,
			r.Totals.In.StringFixed(2),
			r.Totals.Out.StringFixed(2),
			r.Totals.Jackpot.StringFixed(2),
			r.Totals.Billetero.StringFixed(2),
			r.Profit.StringFixed(2),
			storedProfit,
			locked,
			match,
		})
	}
	w.Flush()
	return w.Error()
}

func writeCasinoSummary(outDir string, report *reconapp.ConsolidatedReport, stored *reconciliation.Balance) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Casino %d (%s)\n\n", report.CasinoID, report.CasinoName)
	fmt.Fprintf(&b, "- period: %s\n", report.Period.String())
	fmt.Fprintf(&b, "- machines: %d (with data %d, without data %d)\n", report.TotalMachines, report.MachinesWithData, report.MachinesWithoutData)
	fmt.Fprintf(&b, "- recomputed utilidad: %s\n", report.Profit.StringFixed(2))
	if stored == nil {
		b.WriteString("- stored balance: none\n")
	} else {
		fmt.Fprintf(&b, "- stored utilidad: %s (id %d, locked %v)\n", stored.Profit.StringFixed(2), stored.ID, stored.Locked)
		diff := report.Profit.Sub(stored.Profit)
		fmt.Fprintf(&b, "- difference: %s\n", diff.StringFixed(2))
	}
	return os.WriteFile(filepath.Join(outDir, "casino_summary.md"), []byte(b.String()), 0o644)
}

func loadLegacy(path string) (map[int64]legacyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]legacyRow, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: machine id %q", i+1, rec[0])
		}
		profit, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: utilidad %q", i+1, rec[1])
		}
		out[id] = legacyRow{MachineID: id, Profit: profit}
	}
	return out, nil
}

func writeDiffReport(outDir string, rows []machineRow, legacy map[int64]legacyRow) error {
	var b strings.Builder
	b.WriteString("# Legacy diff\n\n")
	b.WriteString("| machine | utilidad | legacy | diff |\n|---|---|---|---|\n")
	mismatches := 0
	seen := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		seen[r.MachineID] = struct{}{}
		l, ok := legacy[r.MachineID]
		if !ok {
			fmt.Fprintf(&b, "| %d | %s | missing | |\n", r.MachineID, r.Profit.StringFixed(2))
			mismatches++
			continue
		}
		diff := r.Profit.Sub(l.Profit)
		if !diff.IsZero() {
			mismatches++
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", r.MachineID, r.Profit.StringFixed(2), l.Profit.StringFixed(2), diff.StringFixed(2))
	}
	extra := make([]int64, 0)
	for id := range legacy {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, id := range extra {
		fmt.Fprintf(&b, "| %d | missing | %s | |\n", id, legacy[id].Profit.StringFixed(2))
		mismatches++
	}
	fmt.Fprintf(&b, "\nmismatches: %d\n", mismatches)
	return os.WriteFile(filepath.Join(outDir, "legacy_diff.md"), []byte(b.String()), 0o644)
}
