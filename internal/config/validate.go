package config

import (
	"fmt"
	"strings"
)

// Validate enforces document invariants.
func (c *Config) Validate() error {
	if c.Supervision.PollInterval.Duration <= 0 {
		return fmt.Errorf("%s: must be greater than zero", fieldPath("supervision", "pollInterval"))
	}
	if c.Supervision.GracePeriod.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("supervision", "gracePeriod"))
	}
	if c.Supervision.KillAfter.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("supervision", "killAfter"))
	}
	for key := range c.Env {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%s: variable name must be non-empty", fieldPath("env"))
		}
		if strings.ContainsAny(key, "=\x00") {
			return fmt.Errorf("%s: invalid variable name %q", fieldPath("env"), key)
		}
	}
	for i, p := range c.Hooks.Wait {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s: path must be non-empty", fieldPath("hooks", fmt.Sprintf("wait[%d]", i)))
		}
	}
	switch c.Output.Summary {
	case SummaryNone, SummaryText, SummaryJSON, SummaryYAML:
	default:
		return fmt.Errorf("%s: unsupported format %q", fieldPath("output", "summary"), c.Output.Summary)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%s: unsupported format %q", fieldPath("logging", "format"), c.Logging.Format)
	}
	return nil
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}
