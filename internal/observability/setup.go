package observability

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/config"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/observability"
)

// Setup wires logging, metrics and tracing and returns the tracer shutdown.
func Setup(serviceName string, cfg *config.Config) func(context.Context) error {
	observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics(cfg.MetricsAddr)
	return observability.InitTracing(serviceName, cfg.OTLPEndpoint)
}
