package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

// NormalizeHeader turns a CSV header like ` "Sms Phone Number" ` into sms_phone_number.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, `"`, "")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

// ParseNumber parses a numeric cell, tolerating a currency sign and thousands separators.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

// NormalizeID renders numeric identifiers without exponent or trailing ".0",
// so 15122546961, "15122546961.0" and "1.5122546961e10" compare equal.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
}

// ParseDate parses the date formats seen in delivery report exports, truncated to the day (UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}
