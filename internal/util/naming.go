package util

import (
	"path"
	"strings"
)

const (
	NameDelimiter     = "-"
	UncategorizedName = "Uncategorized"
)

// TenderName is the first two delimiter-separated tokens of a file name,
// e.g. "P01-T02-Z1-1F-..." -> "P01-T02".
func TenderName(fileName string) string {
	parts := strings.Split(fileName, NameDelimiter)
	if len(parts) < 2 {
		return UncategorizedName
	}
	return parts[0] + NameDelimiter + parts[1]
}

// ModelName strips directories and the extension from an uploaded file name.
func ModelName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSpace(base)
}

// SplitName splits a coded name and trims each token.
func SplitName(value string) []string {
	parts := strings.Split(value, NameDelimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func ParseCommaSeparated(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
