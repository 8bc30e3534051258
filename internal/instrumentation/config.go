package instrumentation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Environment variables read by DefaultConfig.
const (
	EnvEnabled              = "INSTRUMENTATION_ENABLED"
	EnvServiceName          = "OTEL_SERVICE_NAME"
	EnvServiceInstanceID    = "OTEL_SERVICE_INSTANCE_ID"
	EnvMetricsExporter      = "METRICS_EXPORTER"
	EnvTracingExporter      = "TRACING_EXPORTER"
	EnvOTLPEndpoint         = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure         = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvTraceSamplingRate    = "OTEL_TRACES_SAMPLER_ARG"
	EnvDetailedLabels       = "METRICS_DETAILED_LABELS"
	EnvFileOperationBuckets = "METRICS_FILE_OPERATION_BUCKETS"
	EnvBatchSizeBuckets     = "METRICS_BATCH_SIZE_BUCKETS"
	EnvAuditEnabled         = "AUDIT_LOGGING_ENABLED"
	EnvAuditIncludePaths    = "AUDIT_LOGGING_INCLUDE_PATHS"
)

// Exporter names accepted by MetricsExporter and TracingExporter.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: batchfs)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID identifies this process (default: hostname)
	ServiceInstanceID string

	// Enabled turns metrics and tracing on (default: true)
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout (default: prometheus)
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none (default: none)
	TracingExporter string

	// OTLPEndpoint is the collector address without scheme, e.g. "localhost:4318"
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Spans carry file paths, so
	// keep it for local collectors.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio of sampled traces (default: 0.1)
	TraceSamplingRate float64

	// DetailedLabels records unknown operation types verbatim instead of
	// folding them into "other". Keep it off for untrusted clients.
	DetailedLabels bool

	// Buckets overrides histogram boundaries. Empty slices keep the defaults.
	Buckets HistogramBuckets

	// AuditLogging configures audit logging behavior.
	AuditLogging AuditLoggingConfig
}

// HistogramBuckets holds explicit boundaries for the batch histograms.
type HistogramBuckets struct {
	// FileOperationSeconds bounds file_operation_duration_seconds.
	FileOperationSeconds []float64

	// BatchOperations bounds batch_operations, the operation count per batch.
	BatchOperations []float64
}

// DefaultHistogramBuckets returns the boundaries used when none are configured.
func DefaultHistogramBuckets() HistogramBuckets {
	return HistogramBuckets{
		FileOperationSeconds: slices.Clone(defaultFileOperationBuckets),
		BatchOperations:      slices.Clone(defaultBatchOperationBuckets),
	}
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true)
	Enabled bool

	// IncludePaths controls whether the paths touched by a batch are written
	// to the audit log (default: false). Paths can reveal user data.
	IncludePaths bool
}

// DefaultConfig returns the built-in configuration overlaid with the
// environment. Unparsable values fall back to the default.
func DefaultConfig() Config {
	instanceID := envString(EnvServiceInstanceID, "")
	if instanceID == "" {
		instanceID, _ = os.Hostname()
	}

	return Config{
		ServiceName:       envString(EnvServiceName, "batchfs"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: instanceID,
		Enabled:           envBool(EnvEnabled, true),
		MetricsExporter:   envString(EnvMetricsExporter, ExporterPrometheus),
		TracingExporter:   envString(EnvTracingExporter, ExporterNone),
		OTLPEndpoint:      envString(EnvOTLPEndpoint, ""),
		OTLPInsecure:      envBool(EnvOTLPInsecure, false),
		TraceSamplingRate: envFloat(EnvTraceSamplingRate, 0.1),
		DetailedLabels:    envBool(EnvDetailedLabels, false),
		Buckets: HistogramBuckets{
			FileOperationSeconds: envFloats(EnvFileOperationBuckets, nil),
			BatchOperations:      envFloats(EnvBatchSizeBuckets, nil),
		},
		AuditLogging: AuditLoggingConfig{
			Enabled:      envBool(EnvAuditEnabled, true),
			IncludePaths: envBool(EnvAuditIncludePaths, false),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if err := validateBuckets(c.Buckets.FileOperationSeconds); err != nil {
		return fmt.Errorf("file operation buckets: %w", err)
	}
	if err := validateBuckets(c.Buckets.BatchOperations); err != nil {
		return fmt.Errorf("batch size buckets: %w", err)
	}
	return nil
}

// validateBuckets accepts an empty slice or strictly increasing positive values.
func validateBuckets(b []float64) error {
	for i, v := range b {
		if v <= 0 {
			return fmt.Errorf("boundary %v must be positive", v)
		}
		if i > 0 && v <= b[i-1] {
			return fmt.Errorf("boundaries must be strictly increasing, got %v after %v", v, b[i-1])
		}
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

// envFloats parses a comma separated list such as "0.01,0.1,1".
func envFloats(key string, def []float64) []float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return def
		}
		out = append(out, v)
	}
	return out
}
