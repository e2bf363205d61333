package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	counters "casino-cuadres/internal/counters/domain"
	counterrepo "casino-cuadres/internal/counters/infrastructure/postgres"
	masterdata "casino-cuadres/internal/masterdata/domain"
	directorymemory "casino-cuadres/internal/masterdata/infrastructure/memory"
	masterdatarepo "casino-cuadres/internal/masterdata/infrastructure/postgres"
)

var brands = []string{"IGT", "Aristocrat", "Novomatic", "Konami", "Bally"}

type config struct {
	dsn              string
	baseURL          string
	token            string
	fixture          string
	casinoBase       int64
	casinoCount      int
	machinesPer      int
	startDate        string
	days             int
	snapshotsPerDay  int
	reconcileCasinos bool
	lock             bool
	balanceIDsOut    string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.casinoCount <= 0 && cfg.fixture == "" {
		log.Fatal("casino-count must be > 0")
	}
	if cfg.days <= 0 {
		log.Fatal("days must be > 0")
	}
	if cfg.snapshotsPerDay <= 0 {
		log.Fatal("snapshots-per-day must be > 0")
	}

	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	directory := masterdatarepo.NewDirectory(db)

	casinos, machines, err := buildMasterdata(cfg)
	if err != nil {
		log.Fatalf("masterdata: %v", err)
	}
	log.Printf("seeding masterdata: casinos=%d machines=%d", len(casinos), len(machines))
	for _, c := range casinos {
		if err := directory.SaveCasino(ctx, c); err != nil {
			log.Fatalf("save casino %d: %v", c.ID, err)
		}
	}
	for _, m := range machines {
		if err := directory.SaveMachine(ctx, m); err != nil {
			log.Fatalf("save machine %d: %v", m.ID, err)
		}
	}

	log.Printf("seeding counters: machines=%d days=%d per_day=%d", len(machines), cfg.days, cfg.snapshotsPerDay)
	if err := seedCounters(ctx, counterrepo.NewStore(db), machines, start, cfg.days, cfg.snapshotsPerDay); err != nil {
		log.Fatalf("seed counters: %v", err)
	}

	if cfg.reconcileCasinos {
		if cfg.baseURL == "" {
			log.Fatal("base-url is required when reconcile-casinos is enabled")
		}
		end := start.AddDate(0, 0, cfg.days-1)
		log.Printf("reconciling casinos: period=%s..%s lock=%v", start.Format("2006-01-02"), end.Format("2006-01-02"), cfg.lock)
		ids, err := reconcileCasinos(ctx, cfg.baseURL, cfg.token, casinos, start, end, cfg.lock)
		if err != nil {
			log.Fatalf("reconcile casinos: %v", err)
		}
		if cfg.balanceIDsOut != "" {
			if err := writeLines(cfg.balanceIDsOut, ids); err != nil {
				log.Fatalf("write balance ids: %v", err)
			}
			log.Printf("balance ids written to %s", cfg.balanceIDsOut)
		}
	}

	log.Printf("perf seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", ""), "API base URL for casino reconciliation")
	flag.StringVar(&cfg.token, "token", envOrDefault("API_TOKEN", ""), "bearer token for the API")
	flag.StringVar(&cfg.fixture, "fixture", envOrDefault("MASTERDATA_FILE", ""), "yaml masterdata fixture; overrides generated casinos")
	flag.Int64Var(&cfg.casinoBase, "casino-base", int64(envOrInt("CASINO_BASE", 1000)), "first generated casino id")
	flag.IntVar(&cfg.casinoCount, "casino-count", envOrInt("CASINO_COUNT", 5), "number of casinos to generate")
	flag.IntVar(&cfg.machinesPer, "machines-per-casino", envOrInt("MACHINES_PER_CASINO", 40), "machines generated per casino")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "start date (YYYY-MM-DD)")
	flag.IntVar(&cfg.days, "days", envOrInt("DAYS", 30), "number of days to seed")
	flag.IntVar(&cfg.snapshotsPerDay, "snapshots-per-day", envOrInt("SNAPSHOTS_PER_DAY", 2), "counter readings per machine per day")
	flag.BoolVar(&cfg.reconcileCasinos, "reconcile-casinos", envOrBool("RECONCILE_CASINOS", false), "reconcile seeded casinos via API")
	flag.BoolVar(&cfg.lock, "lock", envOrBool("LOCK", false), "lock the generated casino balances")
	flag.StringVar(&cfg.balanceIDsOut, "balance-ids-out", envOrDefault("BALANCE_IDS_OUT", ""), "output file for casino balance IDs")
	flag.Parse()
	return cfg
}

func parseStartDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0), nil
	}
	return time.ParseInLocation("2006-01-02", value, time.UTC)
}

func buildMasterdata(cfg config) ([]masterdata.Casino, []masterdata.Machine, error) {
	if cfg.fixture != "" {
		data, err := os.ReadFile(cfg.fixture)
		if err != nil {
			return nil, nil, err
		}
		fixture, err := directorymemory.ParseFixture(data)
		if err != nil {
			return nil, nil, err
		}
		return fixture.Casinos, fixture.Machines, nil
	}

	casinos := make([]masterdata.Casino, 0, cfg.casinoCount)
	machines := make([]masterdata.Machine, 0, cfg.casinoCount*cfg.machinesPer)
	for i := 0; i < cfg.casinoCount; i++ {
		casinoID := cfg.casinoBase + int64(i)
		casinos = append(casinos, masterdata.Casino{
			ID:     casinoID,
			Name:   fmt.Sprintf("Casino Perf %02d", i+1),
			Code:   fmt.Sprintf("CP%04d", casinoID),
			City:   []string{"Bogota", "Medellin", "Cali"}[i%3],
			Active: true,
		})
		for j := 0; j < cfg.machinesPer; j++ {
			machineID := casinoID*1000 + int64(j+1)
			machines = append(machines, masterdata.Machine{
				ID:           machineID,
				CasinoID:     casinoID,
				Brand:        brands[j%len(brands)],
				Model:        fmt.Sprintf("M-%d", j%7),
				Serial:       fmt.Sprintf("SN-%d", machineID),
				Asset:        fmt.Sprintf("A-%d", machineID),
				Denomination: decimal.NewFromInt(1),
				Active:       true,
			})
		}
	}
	return casinos, machines, nil
}

// seedCounters writes monotonic meter readings spread across each day.
func seedCounters(ctx context.Context, store *counterrepo.Store, machines []masterdata.Machine, start time.Time, days, perDay int) error {
	step := 24 * time.Hour / time.Duration(perDay)
	now := time.Now().UTC()
	for idx, m := range machines {
		base := int64(idx%10 + 1)
		var in, out, jackpot, billetero int64
		for day := 0; day < days; day++ {
			dayStart := start.AddDate(0, 0, day)
			for n := 0; n < perDay; n++ {
				in += base * 1000
				out += base * 650
				if (day+n)%11 == 0 {
					jackpot += base * 200
				}
				billetero += base * 800
				snap := &counters.Snapshot{
					MachineID: m.ID,
					CasinoID:  m.CasinoID,
					At:        dayStart.Add(time.Duration(n)*step + 8*time.Hour).Truncate(time.Second),
					In:        decimal.NewFromInt(in),
					Out:       decimal.NewFromInt(out),
					Jackpot:   decimal.NewFromInt(jackpot),
					Billetero: decimal.NewFromInt(billetero),
					CreatedAt: now,
					CreatedBy: "perf_seed",
				}
				if err := store.Insert(ctx, snap); err != nil {
					return fmt.Errorf("machine %d: %w", m.ID, err)
				}
			}
		}
		if (idx+1)%50 == 0 || idx+1 == len(machines) {
			log.Printf("seeded counters (%d/%d)", idx+1, len(machines))
		}
	}
	return nil
}

func reconcileCasinos(ctx context.Context, baseURL, token string, casinos []masterdata.Casino, start, end time.Time, lock bool) ([]string, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	baseURL = strings.TrimRight(baseURL, "/")
	ids := make([]string, 0, len(casinos))
	for _, c := range casinos {
		body := map[string]any{
			"casino_id": c.ID,
			"start":     start.Format("2006-01-02"),
			"end":       end.Format("2006-01-02"),
			"persist":   true,
			"lock":      lock,
		}
		payload, _ := json.Marshal(body)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/reconciliations/casinos", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("reconcile casino %d failed: http %d", c.ID, resp.StatusCode)
		}
		var respBody struct {
			Balance struct {
				ID int64 `json:"id"`
			} `json:"balance"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}
		_ = resp.Body.Close()
		if respBody.Balance.ID == 0 {
			return nil, fmt.Errorf("empty balance id for casino %d", c.ID)
		}
		ids = append(ids, strconv.FormatInt(respBody.Balance.ID, 10))
	}
	return ids, nil
}

func writeLines(path string, lines []string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := strings.Join(lines, "\n")
	return os.WriteFile(path, []byte(content), 0o644)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
