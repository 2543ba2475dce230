package telemetry

import (
	"context"

	"github.com/pointboard/forum/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
)

// ServiceVersion is reported with every span.
const ServiceVersion = "0.1.0"

// ConfigureTracing installs the Uptrace exporter as the global OpenTelemetry
// provider. It returns false and does nothing when no DSN is configured.
func ConfigureTracing(cfg *config.Telemetry, serviceType ServiceType) bool {
	if cfg.UptraceDSN == "" {
		return false
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "forum"
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(serviceName+"-"+serviceType.String()),
		uptrace.WithServiceVersion(ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	return true
}

// ShutdownTracing flushes buffered spans.
func ShutdownTracing(ctx context.Context) error {
	return uptrace.Shutdown(ctx)
}
