package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

var allowedSpanKeys = map[attribute.Key]struct{}{
	"request_id":              {},
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"xp.source":               {},
	"streak.action":           {},
}

// SafeAttributes strips attributes that could carry user-identifying data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError redacts errors before recording them on a span. Sentinel domain
// errors are short machine codes and safe to record as-is.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if len(err.Error()) > 120 {
		return errors.New("internal error")
	}
	return err
}
