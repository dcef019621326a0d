package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// IntParam reads an optional integer query parameter bounded by [min, max].
func IntParam(q url.Values, name string, min, max int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", name, raw)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", name, min, max)
	}
	return v, nil
}

// FloatParam reads an optional non-negative decimal query parameter.
func FloatParam(q url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q is not a non-negative number", name, raw)
	}
	return v, nil
}
