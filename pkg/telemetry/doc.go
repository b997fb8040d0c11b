// Package telemetry provides the observability stack of plusconf.
//
// It bundles structured logging (zerolog), tracing (OpenTelemetry),
// Prometheus metrics, lifecycle events and pass warnings behind a single
// Telemetry value built from a Config:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// # Logging
//
// Loggers are scoped per component and carry pass, location and file fields:
//
//	logger := tel.Logger.NewComponentLogger("resolver").WithPassID(passID)
//	logger.WithFile("/pages/+config.star").Debug("loaded")
//
// # Warnings
//
// A Warner collects the warnings of one pass. Every warning is recorded in
// the pass result; WarnOnce logs a given key at most once per process, since
// the OnceSet is shared by every Warner created with Telemetry.NewWarner.
//
// # Tracing
//
// Each pass runs in a resolve.pass span and each loaded plus file in a
// resolve.load span. Spans are exported through OTLP/gRPC or stdout.
//
// # Metrics
//
// Metrics are exposed on the configured listen address when enabled:
//
//	plusconf_passes_total{status}
//	plusconf_pass_duration_seconds
//	plusconf_pages_resolved
//	plusconf_warnings_total
//	plusconf_files_loaded_total{format}
//	plusconf_errors_total{class,code}
//	plusconf_config_invalid
//
// # Events
//
// The EventPublisher delivers pass.started, pass.completed, pass.failed,
// pass.discarded, config.recovered and config.restart_required events to
// subscribers, synchronously or from a buffered goroutine.
package telemetry
