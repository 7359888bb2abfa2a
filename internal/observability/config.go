package observability

import (
	"strings"

	"github.com/smallbiznis/creditledger/internal/config"
)

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"

	defaultSamplingRatio = 0.1
)

// Config is the telemetry view of the process configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig normalizes telemetry settings. Unknown exporter protocols fall
// back to gRPC and sampling ratios outside [0, 1] fall back to the default.
func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "creditledger"
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Telemetry.OtelProtocol))
	switch protocol {
	case protocolHTTP, "http/protobuf":
		protocol = protocolHTTP
	default:
		protocol = protocolGRPC
	}

	ratio := cfg.Telemetry.SamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = defaultSamplingRatio
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Telemetry.LogLevel))
	if level == "" {
		level = "info"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             level,
		LogFormat:            strings.ToLower(strings.TrimSpace(cfg.Telemetry.LogFormat)),
		OtelEnabled:          cfg.Telemetry.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug enables verbose request logging and stack traces.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
