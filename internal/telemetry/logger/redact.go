package logger

import (
	"log/slog"
	"strings"
)

// Attribute keys whose values are never written. "sender" is the bearer
// token presented with every request; keyval, secret, text, cipher and
// signature are request payloads.
var sensitiveKeyPatterns = []string{
	"sender",
	"token",
	"secret",
	"keyval",
	"password",
	"credential",
	"bearer",
	"text",
	"cipher",
	"signature",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces the value of sensitive attributes.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}

	// Empty strings stay visible: an empty token is the disable marker.
	if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
		return a
	}
	return slog.String(a.Key, redactedValue)
}

// IsSensitiveKey reports whether an attribute key names a credential or a
// payload.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// RedactFields returns a copy of a request mapping safe for logging:
// sensitive fields are replaced, byte payloads are reduced to their length.
func RedactFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch {
		case IsSensitiveKey(k):
			if s, ok := v.(string); ok && s == "" {
				out[k] = ""
				continue
			}
			out[k] = redactedValue
		default:
			if b, ok := v.([]byte); ok {
				out[k] = len(b)
				continue
			}
			out[k] = v
		}
	}
	return out
}
