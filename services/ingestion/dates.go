package ingestion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch bounds of years 0001 and 9999.
const (
	minEpochSeconds = -62135596800
	maxEpochSeconds = 253402300799
)

// Zone-less layouts parse as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizeDate converts one raw date value into an absolute instant.
// The bool is false when v is not a recognizable date.
func NormalizeDate(v any) (time.Time, bool) {
	switch value := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if value.IsZero() {
			return time.Time{}, false
		}
		return value.UTC(), true
	case *time.Time:
		if value == nil {
			return time.Time{}, false
		}
		return NormalizeDate(*value)
	case json.Number:
		return normalizeNumericString(value.String())
	case string:
		return normalizeDateString(value)
	case int:
		return fromEpochSeconds(float64(value))
	case int8:
		return fromEpochSeconds(float64(value))
	case int16:
		return fromEpochSeconds(float64(value))
	case int32:
		return fromEpochSeconds(float64(value))
	case int64:
		return fromEpochInt(value)
	case uint:
		return fromEpochSeconds(float64(value))
	case uint8:
		return fromEpochSeconds(float64(value))
	case uint16:
		return fromEpochSeconds(float64(value))
	case uint32:
		return fromEpochSeconds(float64(value))
	case uint64:
		if value > maxEpochSeconds {
			return time.Time{}, false
		}
		return fromEpochInt(int64(value))
	case float32:
		return fromEpochSeconds(float64(value))
	case float64:
		return fromEpochSeconds(value)
	default:
		return time.Time{}, false
	}
}

func normalizeDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := normalizeNumericString(s); ok {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func normalizeNumericString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpochInt(i)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	return fromEpochSeconds(f)
}

func fromEpochInt(sec int64) (time.Time, bool) {
	if sec < minEpochSeconds || sec > maxEpochSeconds {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

func fromEpochSeconds(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < minEpochSeconds || f > maxEpochSeconds {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	nsec := int64(math.Round(frac * 1e9))
	return time.Unix(int64(sec), nsec).UTC(), true
}
