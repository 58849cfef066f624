package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultGracePeriod  = 5 * time.Second
)

// Summary formats accepted by Output.Summary.
const (
	SummaryNone = "none"
	SummaryText = "text"
	SummaryJSON = "json"
	SummaryYAML = "yaml"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Set assigns a value and marks it explicit.
func (d *Duration) Set(v time.Duration) {
	d.Duration = v
	d.explicit = true
}

// Config mirrors the procwarden.yaml document structure.
type Config struct {
	Command     []string          `yaml:"command"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
	Workdir     string            `yaml:"workdir"`
	Session     bool              `yaml:"session"`
	Supervision Supervision       `yaml:"supervision"`
	Hooks       Hooks             `yaml:"hooks"`
	Output      Output            `yaml:"output"`
	Logging     Logging           `yaml:"logging"`
	Metrics     Metrics           `yaml:"metrics"`
}

// Supervision tunes the reaper loop and signal escalation.
type Supervision struct {
	PollInterval Duration `yaml:"pollInterval"`
	GracePeriod  Duration `yaml:"gracePeriod"`
	KillAfter    Duration `yaml:"killAfter"`
	TimeoutIsOK  bool     `yaml:"timeoutIsOk"`
	Subreaper    *bool    `yaml:"subreaper"`
}

// Hooks run around the supervised command.
type Hooks struct {
	Wait   []string `yaml:"wait"`
	OnExit string   `yaml:"onExit"`
}

// Output controls what is reported once the tree drained.
type Output struct {
	Summary     string `yaml:"summary"`
	SummaryFile string `yaml:"summaryFile"`
	Events      bool   `yaml:"events"`
}

// Logging configures the runner's own diagnostics.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if !c.Supervision.PollInterval.IsSet() {
		c.Supervision.PollInterval.Duration = DefaultPollInterval
	}
	if !c.Supervision.GracePeriod.IsSet() {
		c.Supervision.GracePeriod.Duration = DefaultGracePeriod
	}
	if c.Supervision.Subreaper == nil {
		enabled := true
		c.Supervision.Subreaper = &enabled
	}
	if c.Output.Summary == "" {
		c.Output.Summary = SummaryNone
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// SubreaperEnabled reports whether the runner should adopt orphans.
func (c *Config) SubreaperEnabled() bool {
	return c.Supervision.Subreaper == nil || *c.Supervision.Subreaper
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if len(c.Command) > 0 {
		cp.Command = append([]string(nil), c.Command...)
	}
	if len(c.Env) > 0 {
		cp.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			cp.Env[k] = v
		}
	}
	if len(c.Hooks.Wait) > 0 {
		cp.Hooks.Wait = append([]string(nil), c.Hooks.Wait...)
	}
	if c.Supervision.Subreaper != nil {
		v := *c.Supervision.Subreaper
		cp.Supervision.Subreaper = &v
	}
	return &cp
}
