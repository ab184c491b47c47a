package ingestion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/customeros/dmarcstack/dto"
)

// path is one lookup route through nested mappings.
type path []string

func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case dto.RawReport:
		return m, true
	default:
		return nil, false
	}
}

func lookup(m map[string]any, p path) (any, bool) {
	var current any = m
	for _, key := range p {
		mapping, ok := asMapping(current)
		if !ok {
			return nil, false
		}
		current, ok = mapping[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

// firstMapping returns the first route resolving to a mapping, or an empty mapping.
func firstMapping(m map[string]any, paths ...path) map[string]any {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			if mapping, ok := asMapping(v); ok {
				return mapping
			}
		}
	}
	return map[string]any{}
}

// firstValue returns the first route resolving to a non-nil value.
func firstValue(m map[string]any, paths ...path) (any, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			return v, true
		}
	}
	return nil, false
}

// firstString returns the first route resolving to a non-blank scalar.
func firstString(m map[string]any, paths ...path) string {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func asString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1e15 {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

// asList accepts a sequence of mappings or a single mapping.
func asList(v any) []map[string]any {
	switch value := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(value))
		for _, item := range value {
			if mapping, ok := asMapping(item); ok {
				out = append(out, mapping)
			}
		}
		return out
	case []map[string]any:
		return value
	default:
		if mapping, ok := asMapping(v); ok {
			return []map[string]any{mapping}
		}
		return nil
	}
}

func asBool(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "pass", "yes", "1":
			return true
		}
		return false
	case json.Number:
		f, err := value.Float64()
		return err == nil && f != 0
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	default:
		return false
	}
}

// asCount parses a message count. Negative or unparseable input yields 0.
func asCount(v any) int64 {
	var n int64
	switch value := v.(type) {
	case int:
		n = int64(value)
	case int32:
		n = int64(value)
	case int64:
		n = value
	case uint32:
		n = int64(value)
	case uint64:
		if value > math.MaxInt64 {
			return 0
		}
		n = int64(value)
	case float32:
		n = floatCount(float64(value))
	case float64:
		n = floatCount(value)
	case json.Number:
		n = stringCount(value.String())
	case string:
		n = stringCount(value)
	}
	if n < 0 {
		return 0
	}
	return n
}

func stringCount(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return floatCount(f)
}

func floatCount(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt64 {
		return 0
	}
	return int64(f)
}
