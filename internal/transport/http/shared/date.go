package shared

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse(DateLayout, value)
}

// NormalizeDate returns value as YYYY-MM-DD, or "" for an empty input.
func NormalizeDate(value string) (string, error) {
	parsed, err := ParseDate(strings.TrimSpace(value))
	if err != nil || parsed.IsZero() {
		return "", err
	}
	return parsed.Format(DateLayout), nil
}
