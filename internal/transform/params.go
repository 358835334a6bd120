package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// GetIntParam safely extracts an int parameter from the params map
func GetIntParam(params map[string]any, key string, defaultValue int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultValue
}

// GetFloatParam safely extracts a float parameter from the params map
func GetFloatParam(params map[string]any, key string, defaultValue float64) float64 {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int:
			return float64(v)
		case int64:
			return float64(v)
		}
	}
	return defaultValue
}

// GetBoolParam safely extracts a bool parameter from the params map.
// Strings "true"/"false" are accepted case-insensitively.
func GetBoolParam(params map[string]any, key string, defaultValue bool) bool {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case bool:
			return v
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true
			case "false":
				return false
			}
		}
	}
	return defaultValue
}

// ValidateKnownParams rejects keys outside allowed.
func ValidateKnownParams(params map[string]any, allowed ...string) error {
	var unknown []string
	for key := range params {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown parameters: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ValidateIntParams checks that every present key holds a whole number.
// YAML decodes 15.0 as a float, which is accepted; 15.5 is not.
func ValidateIntParams(params map[string]any, keys ...string) error {
	for _, key := range keys {
		val, ok := params[key]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case int, int64:
		case float64:
			if v != math.Trunc(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s must be an integer, got %v", key, v)
			}
		default:
			return fmt.Errorf("%s must be an integer, got %T", key, val)
		}
	}
	return nil
}
