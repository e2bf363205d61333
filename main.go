package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"casino-cuadres/internal/audit"
	"casino-cuadres/internal/auth"
	"casino-cuadres/internal/config"
	counterapp "casino-cuadres/internal/counters/application"
	counters "casino-cuadres/internal/counters/domain"
	countermemory "casino-cuadres/internal/counters/infrastructure/memory"
	counterrepo "casino-cuadres/internal/counters/infrastructure/postgres"
	counterhttp "casino-cuadres/internal/counters/interfaces/http"
	"casino-cuadres/internal/logger"
	masterdata "casino-cuadres/internal/masterdata/domain"
	directorymemory "casino-cuadres/internal/masterdata/infrastructure/memory"
	masterdatarepo "casino-cuadres/internal/masterdata/infrastructure/postgres"
	"casino-cuadres/internal/observability/metrics"
	reconapp "casino-cuadres/internal/reconciliation/application"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
	balancememory "casino-cuadres/internal/reconciliation/infrastructure/memory"
	balancerepo "casino-cuadres/internal/reconciliation/infrastructure/postgres"
	reconinterfaces "casino-cuadres/internal/reconciliation/interfaces"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Engine.Location()
	if err != nil {
		log.Fatal("invalid timezone", zap.String("timezone", cfg.Engine.Timezone), zap.Error(err))
	}
	mode, err := reconciliation.ParseDeltaMode(cfg.Engine.DeltaMode)
	if err != nil {
		log.Fatal("invalid delta mode", zap.Error(err))
	}

	st, err := openStores(cfg, log)
	if err != nil {
		log.Fatal("store init error", zap.String("store", cfg.Store), zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}
	metrics.Init(st.db, log)

	clock := reconapp.SystemClock{Location: loc}
	opts := []reconapp.Option{
		reconapp.WithMaxParallel(cfg.Engine.MaxParallel),
		reconapp.WithMaxMachines(cfg.Engine.MaxMachines),
		reconapp.WithLogger(log),
	}

	engine, err := reconapp.NewDeltaEngine(st.directory, st.counters, mode)
	if err != nil {
		log.Fatal("delta engine error", zap.Error(err))
	}
	machineReconciler, err := reconapp.NewMachineReconciler(engine, st.balances, clock, opts...)
	if err != nil {
		log.Fatal("machine reconciler error", zap.Error(err))
	}
	casinoReconciler, err := reconapp.NewCasinoReconciler(st.directory, engine, st.balances, clock, opts...)
	if err != nil {
		log.Fatal("casino reconciler error", zap.Error(err))
	}
	composer, err := reconapp.NewReportComposer(st.directory, engine, clock, opts...)
	if err != nil {
		log.Fatal("report composer error", zap.Error(err))
	}
	balanceService, err := reconapp.NewBalanceService(st.balances, clock, opts...)
	if err != nil {
		log.Fatal("balance service error", zap.Error(err))
	}
	counterService, err := counterapp.NewService(st.counters, st.directory, clock, log)
	if err != nil {
		log.Fatal("counter service error", zap.Error(err))
	}

	reconHandler, err := reconinterfaces.NewHandler(machineReconciler, casinoReconciler, composer, balanceService,
		reconinterfaces.WithAuditLogger(st.audit),
		reconinterfaces.WithLocation(loc),
		reconinterfaces.WithLogger(log),
	)
	if err != nil {
		log.Fatal("reconciliation handler error", zap.Error(err))
	}
	counterHandler, err := counterhttp.NewHandler(counterService, st.audit, loc, log)
	if err != nil {
		log.Fatal("counter handler error", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Export-ID"},
	}))
	r.Use(loggingMiddleware(log))
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		r.Use(auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap)
	} else {
		log.Warn("AUTH_JWT_SECRET not set; API is unauthenticated")
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if st.db != nil {
			if err := st.db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api/v1", func(r chi.Router) {
		reconHandler.Routes(r)
		counterHandler.Routes(r)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("http listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store", cfg.Store),
		zap.String("delta_mode", string(mode)),
		zap.String("timezone", loc.String()),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server error", zap.Error(err))
	}
}

type stores struct {
	db        *sql.DB
	directory masterdata.Directory
	counters  counters.Store
	balances  reconciliation.BalanceRepository
	audit     audit.Logger
}

func openStores(cfg config.Config, log *zap.Logger) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		directory := directorymemory.NewDirectory()
		if cfg.MasterdataFile != "" {
			loaded, err := directorymemory.LoadFile(cfg.MasterdataFile)
			if err != nil {
				return nil, err
			}
			directory = loaded
		}
		return &stores{
			directory: directory,
			counters:  countermemory.NewStore(),
			balances:  balancememory.NewBalanceRepository(),
			audit:     audit.NewZapLogger(log),
		}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		db:        db,
		directory: masterdatarepo.NewDirectory(db),
		counters:  counterrepo.NewStore(db),
		balances:  balancerepo.NewBalanceRepository(db),
		audit:     audit.NewRepository(db),
	}, nil
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(resp, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", resp.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
