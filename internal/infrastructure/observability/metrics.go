package observability

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Счётчик вызовов методов репозитория
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	// Гистограмма времени выполнения запросов
	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Исходы расчётов: settle, release, exchange
	SettlementOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_outcomes_total",
			Help: "Settlement operations by operation and outcome code",
		},
		[]string{"operation", "outcome"},
	)

	ModerationVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_verdicts_total",
			Help: "Moderation verdicts by verdict and reason code",
		},
		[]string{"verdict", "reason"},
	)

	PaymentSessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_sessions_swept_total",
			Help: "Expired payment sessions removed by the sweeper",
		},
	)
)

// InitMetrics registers the collectors and serves them on addr.
func InitMetrics(addr string) {
	prometheus.MustRegister(RepositoryCalls, RepositoryDuration, SettlementOutcomes, ModerationVerdicts, PaymentSessionsSwept)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
}
