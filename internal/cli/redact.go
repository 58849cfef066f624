package cli

import (
	"regexp"

	"github.com/Paintersrp/procwarden/internal/config"
)

const redactedPlaceholder = "[redacted]"

var secretKeyPattern = regexp.MustCompile(`(?i)(^|_)(PASSWORD|PASSWD|SECRET|TOKEN|API_?KEY|ACCESS_KEY(_ID)?|PRIVATE_KEY|CREDENTIALS?)($|_)`)

// isSecretKey reports whether an environment variable name looks like it
// holds a credential.
func isSecretKey(key string) bool {
	return secretKeyPattern.MatchString(key)
}

// redactConfig returns a copy of cfg whose secret-looking environment
// values are replaced with a placeholder. cfg is left untouched.
func redactConfig(cfg *config.Config) *config.Config {
	out := cfg.Clone()
	for key, value := range out.Env {
		if value != "" && isSecretKey(key) {
			out.Env[key] = redactedPlaceholder
		}
	}
	return out
}
