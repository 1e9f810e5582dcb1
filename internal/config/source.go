package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source resolves configuration keys from an optional config file and the
// environment. Keys are dotted ("pool.core_workers"); the matching environment
// variable is the upper-cased key with dots replaced by underscores
// (POOL_CORE_WORKERS). Environment values take precedence over the file.
type Source struct {
	v *viper.Viper
}

// Load creates a Source. An empty path means environment only.
func Load(path string) (*Source, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return &Source{v: v}, nil
}

// FromEnv returns a Source backed by the environment only.
func FromEnv() *Source {
	s, _ := Load("")
	return s
}

// String returns the value for key or a default.
func (s *Source) String(key, defaultValue string) string {
	if !s.v.IsSet(key) {
		return defaultValue
	}
	if value := strings.TrimSpace(s.v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

// Int returns an integer value for key, or the default when unset or invalid.
func (s *Source) Int(key string, defaultValue int) int {
	if value := s.String(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Float returns a float value for key, or the default when unset or invalid.
func (s *Source) Float(key string, defaultValue float64) float64 {
	if value := s.String(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Duration returns a duration value for key, or the default when unset or invalid.
func (s *Source) Duration(key string, defaultValue time.Duration) time.Duration {
	if value := s.String(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Bool returns a boolean value for key, or the default when unset or invalid.
func (s *Source) Bool(key string, defaultValue bool) bool {
	if value := s.String(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// StringSlice returns a list for key. Environment values are comma separated;
// file values may be a YAML list or a comma separated string.
func (s *Source) StringSlice(key string, defaultValue []string) []string {
	if !s.v.IsSet(key) {
		return defaultValue
	}

	var items []string
	switch raw := s.v.Get(key).(type) {
	case []any:
		for _, item := range raw {
			items = append(items, fmt.Sprint(item))
		}
	case []string:
		items = raw
	default:
		items = strings.Split(fmt.Sprint(raw), ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// SecretFile reads a secret from the file named by key.
// Works with Docker secrets (/run/secrets/) and K8s secrets (mounted volumes).
func (s *Source) SecretFile(key string) string {
	path := s.String(key, "")
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Secret prefers an inline value and falls back to the <key>_file variant.
func (s *Source) Secret(key string) string {
	if value := s.String(key, ""); value != "" {
		return value
	}
	return s.SecretFile(key + "_file")
}
