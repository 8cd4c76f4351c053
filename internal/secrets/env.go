package secrets

import (
	"os"
	"strings"
)

// sensitiveEnvPrefixes are environment variable prefixes stripped from step
// environments even when not declared as pipeline secrets. Steps receive
// secrets only by explicit name.
var sensitiveEnvPrefixes = []string{
	"AWS_SECRET",
	"AWS_SESSION_TOKEN",
	"GITHUB_TOKEN",
	"GH_TOKEN",
	"GMAIL_APP_PASSWORD",
	"SMTP_PASSWORD",
	"DISCORD_WEBHOOK",
	"DISCORD_TOKEN",
	"SLACK_TOKEN",
	"SLACK_BOT_TOKEN",
	"OPTBRIEF_TOKEN",
}

// sensitiveEnvExact are names stripped on exact match only, so variables
// like DB_PORT or DATABASE_HOST survive.
var sensitiveEnvExact = map[string]struct{}{
	"AWS_SECRET_ACCESS_KEY": {},
	"DATABASE_URL":          {},
	"DB_PASSWORD":           {},
	"REDIS_PASSWORD":        {},
}

// BaseEnv returns a copy of os.Environ() with every stored secret, every
// known sensitive variable, and any remaining occurrence of a stored secret
// value removed. It is the starting environment for pipeline steps; named
// secrets are layered back in per step.
func BaseEnv(store *Store) []string {
	env := os.Environ()
	result := make([]string, 0, len(env))

	var declared map[string]struct{}
	var values []string
	if store != nil {
		names := store.Names()
		declared = make(map[string]struct{}, len(names))
		for _, n := range names {
			declared[n] = struct{}{}
		}
		values = store.Values()
	}

	for _, entry := range env {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, isSecret := declared[key]; isSecret {
			continue
		}
		if isSensitiveEnvVar(key) {
			continue
		}

		// Secret values occasionally hide inside composite variables.
		// Only scrub values of 8+ characters to avoid false positives on
		// short strings like "yes" or "1".
		sanitized := entry
		for _, secret := range values {
			if len(secret) >= 8 && strings.Contains(sanitized, secret) {
				sanitized = strings.ReplaceAll(sanitized, secret, RedactPlaceholder)
			}
		}
		result = append(result, sanitized)
	}
	return result
}

// isSensitiveEnvVar checks a variable name against the known sensitive
// prefixes and exact names.
func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)

	if _, ok := sensitiveEnvExact[upper]; ok {
		return true
	}
	for _, prefix := range sensitiveEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
