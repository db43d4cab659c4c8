package util

import (
	"math"
	"strconv"
	"strings"
)

// unitSuffixes are the trailing units ParseNumber ignores, longest first so
// "mm" wins over "m".
var unitSuffixes = []string{
	"kPa", "MPa",
	"mm²", "mm2", "cm²", "cm2", "m²", "m2", "m³", "m3", "°C",
	"mm", "cm", "km", "kg", "kN", "kW", "Hz", "lm", "lx", "ft",
	"m", "W", "%", "°",
}

// ParseNumber is a best-effort numeric projection of an attribute value.
// Thousands separators and a known trailing unit ("mm", "m²", "%") are
// ignored. Any other suffix, as in the level code "2F", is not numeric.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	for _, u := range unitSuffixes {
		if strings.HasSuffix(s, u) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseNumberPtr returns nil when raw is not numeric.
func ParseNumberPtr(raw string) *float64 {
	f, ok := ParseNumber(raw)
	if !ok {
		return nil
	}
	return &f
}
