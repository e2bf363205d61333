package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "machine_balances_locked",
			Help: "Locked machine balances",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM machine_balances WHERE locked = true")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "casino_balances_locked",
			Help: "Locked casino balances",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM casino_balances WHERE locked = true")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "counter_snapshots",
			Help: "Stored counter snapshots",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM counters")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.String("query", query), zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
