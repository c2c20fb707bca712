package plugins

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Config values arrive from JSON, so numbers are float64 and lists are
// []any. These helpers accept the Go-native shapes too.

func optString(cfg map[string]any, key, def string) string {
	switch v := cfg[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case nil:
	default:
		return fmt.Sprint(v)
	}
	return def
}

func optFloat(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func optInt(cfg map[string]any, key string, def int) int {
	f := optFloat(cfg, key, math.NaN())
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(math.Round(f))
}

func optBool(cfg map[string]any, key string, def bool) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// optStrings reads a list of strings. A single string is split on commas.
func optStrings(cfg map[string]any, key string, def []string) []string {
	var out []string
	switch v := cfg[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = strings.Split(v, ",")
	default:
		return def
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
