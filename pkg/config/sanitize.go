package config

import (
	"strings"
)

// sensitiveKeyPatterns contains patterns that indicate a key holds sensitive data.
var sensitiveKeyPatterns = []string{
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"CREDENTIAL",
	"API_KEY",
	"APIKEY",
	"PRIVATE",
	"PASSPHRASE",
}

const redactedValue = "[REDACTED]"

// Redacted returns a display copy of the configuration with secret-looking
// values replaced by "[REDACTED]". Empty values stay empty so a missing
// password is still visible.
func (c RuntimeConfig) Redacted() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		if v != "" && IsSensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		out[k] = v
	}
	return out
}

// IsSensitiveKey checks if a key name indicates sensitive data.
func IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
