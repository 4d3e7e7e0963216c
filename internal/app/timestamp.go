package app

import (
	"encoding/json"
	"math"
	"time"

	"github.com/transfa/fraud-service/internal/domain"
)

// NormalizeTimestamp converts any supported timestamp encoding into epoch millis.
// Unknown or missing values fall back to now so a malformed timestamp never blocks
// evaluation.
func NormalizeTimestamp(value any, now time.Time) int64 {
	switch v := value.(type) {
	case nil:
		return now.UnixMilli()
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		if ms, ok := truncateFloat(v); ok {
			return ms
		}
	case float32:
		if ms, ok := truncateFloat(float64(v)); ok {
			return ms
		}
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return ms
		}
		if f, err := v.Float64(); err == nil {
			if ms, ok := truncateFloat(f); ok {
				return ms
			}
		}
	case time.Time:
		if !v.IsZero() {
			return v.UnixMilli()
		}
	case *time.Time:
		if v != nil && !v.IsZero() {
			return v.UnixMilli()
		}
	case domain.Timestamp:
		return v.Seconds*1000 + v.Nanoseconds/1_000_000
	case *domain.Timestamp:
		if v != nil {
			return v.Seconds*1000 + v.Nanoseconds/1_000_000
		}
	case map[string]any:
		if ms, ok := secondsObjectMillis(v); ok {
			return ms
		}
	}
	return now.UnixMilli()
}

func secondsObjectMillis(obj map[string]any) (int64, bool) {
	raw, ok := obj["seconds"]
	if !ok {
		raw, ok = obj["_seconds"]
	}
	if !ok {
		return 0, false
	}
	seconds, ok := integerField(raw)
	if !ok {
		return 0, false
	}

	var nanos int64
	rawNanos, ok := obj["nanoseconds"]
	if !ok {
		rawNanos, ok = obj["_nanoseconds"]
	}
	if ok {
		if n, valid := integerField(rawNanos); valid {
			nanos = n
		}
	}
	return seconds*1000 + nanos/1_000_000, true
}

func integerField(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return truncateFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return truncateFloat(f)
		}
	}
	return 0, false
}

func truncateFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Trunc(f)), true
}
