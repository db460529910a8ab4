package logging

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// RedactedValue replaces masked values in log output.
const RedactedValue = "[REDACTED]"

// Keys that may be logged verbatim. Ledger identifiers are public on chain;
// anything else passed through MaskField is replaced by RedactedValue.
var redactionAllowlist = map[string]struct{}{
	// handler keys
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"component": {},
	"error":     {},
	"reason":    {},
	// ledger
	"signature": {},
	"sequence":  {},
	"outcome":   {},
	"program":   {},
	"payer":     {},
	"address":   {},
	"event":     {},
	// staking
	"owner":      {},
	"pool":       {},
	"mint":       {},
	"mode":       {},
	"slot":       {},
	"rewardmint": {},
	// daemon
	"driver": {},
	"method": {},
	"status": {},
}

// IsAllowlisted reports whether key is logged without redaction. Matching
// ignores case, surrounding space and underscores.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[normalizeKey(key)]
	return ok
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "_", "")
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns RedactedValue for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds an attribute whose value is redacted unless key is
// allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskStringer is MaskField for addresses, signatures and other values that
// render themselves.
func MaskStringer(key string, value fmt.Stringer) slog.Attr {
	if value == nil {
		return slog.String(key, "")
	}
	return MaskField(key, value.String())
}

// MaskDSN logs a database DSN. URL DSNs keep scheme, host and database with
// the password masked; key=value DSNs and anything unparsable are fully
// redacted. Bare file paths, as used by sqlite, are kept.
func MaskDSN(key, dsn string) slog.Attr {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" || trimmed == ":memory:" {
		return slog.String(key, trimmed)
	}
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return slog.String(key, RedactedValue)
		}
		u.RawQuery = ""
		return slog.String(key, u.Redacted())
	}
	if strings.ContainsAny(trimmed, "= ?") {
		return slog.String(key, RedactedValue)
	}
	return slog.String(key, trimmed)
}
