// Package redact strips credentials (the completion endpoint's API key) from
// text and settings before they reach logs, the message log or API output.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// String replaces every occurrence of each secret in s with [REDACTED].
// Secrets shorter than 4 characters are ignored to avoid mangling ordinary
// text.
func String(s string, secrets ...string) string {
	for _, v := range secrets {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Settings returns a copy of a flat settings map with the value of every
// credential-looking key replaced by a masked form.
func Settings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSecretKey(k) && v != "" {
			out[k] = Mask(v)
			continue
		}
		out[k] = v
	}
	return out
}

// Mask shows only the last four characters of a secret, e.g. "****abcd".
// Secrets of eight characters or fewer are fully masked.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return placeholder
	}
	return "****" + secret[len(secret)-4:]
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"api_key", "apikey", "token", "secret", "password"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
