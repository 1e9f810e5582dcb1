// Package config provides configuration loading from a config file and environment variables.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the reportbot HTTP gateway.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	ShutdownTimeout   time.Duration // Upper bound for the whole shutdown sequence
}

// LoadServiceConfig loads service configuration.
func LoadServiceConfig(src *Source) *ServiceConfig {
	return &ServiceConfig{
		Port:              src.String("server.port", "8080"),
		MetricsPort:       src.String("server.metrics_port", "9090"),
		APIKey:            src.Secret("server.api_key"),
		ShutdownDrainWait: src.Duration("server.shutdown_drain_wait", 5*time.Second),
		ShutdownTimeout:   src.Duration("server.shutdown_timeout", 45*time.Second),
	}
}
