package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "pending_fees",
			Help: "Platform fee records awaiting consolidation",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM platform_fees WHERE status = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "blocked_merchants",
			Help: "Merchants currently suspended for unpaid debt",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM merchant_balances WHERE is_blocked = TRUE")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "delinquent_merchants",
			Help: "Merchants carrying unpaid debt",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM merchant_balances WHERE debt_amount > 0")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
