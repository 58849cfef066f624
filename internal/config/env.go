package config

import (
	"strconv"
	"time"
)

// Environment overrides. Flags still win over these.
const (
	EnvPollInterval = "PROCWARDEN_POLL_INTERVAL"
	EnvGracePeriod  = "PROCWARDEN_GRACE_PERIOD"
	EnvKillAfter    = "PROCWARDEN_KILL_AFTER"
	EnvMetricsAddr  = "PROCWARDEN_METRICS_ADDR"
	EnvSubreaper    = "PROCWARDEN_SUBREAPER"
	EnvSummary      = "PROCWARDEN_SUMMARY"
)

// ApplyEnv overlays PROCWARDEN_* variables. Malformed values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if value := getenv(EnvPollInterval); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			c.Supervision.PollInterval.Set(d)
		}
	}
	if value := getenv(EnvGracePeriod); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			c.Supervision.GracePeriod.Set(d)
		}
	}
	if value := getenv(EnvKillAfter); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			c.Supervision.KillAfter.Set(d)
		}
	}
	if value := getenv(EnvMetricsAddr); value != "" {
		c.Metrics.Addr = value
	}
	if value := getenv(EnvSubreaper); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			c.Supervision.Subreaper = &enabled
		}
	}
	if value := getenv(EnvSummary); value != "" {
		c.Output.Summary = value
	}
}
