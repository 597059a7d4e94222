package canonical

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const isoDate = "2006-01-02"

// FallbackID synthesizes a stable-enough external ID for a vendor record that
// arrived without one. Callers must log a data-quality warning when they use
// it; a missing vendor ID is never fatal.
func FallbackID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-unknown-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}

// NormalizeDate coerces a vendor date value to ISO YYYY-MM-DD. It accepts
// values that start with an ISO date (including full timestamps) and the US
// MM/DD/YYYY form. Unparsable values are returned verbatim with ok=false so
// the caller can log a warning instead of dropping the record.
func NormalizeDate(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}

	if len(v) >= len(isoDate) {
		if t, err := time.Parse(isoDate, v[:len(isoDate)]); err == nil {
			return t.Format(isoDate), true
		}
	}

	if t, err := time.Parse("01/02/2006", v); err == nil {
		return t.Format(isoDate), true
	}
	if t, err := time.Parse("1/2/2006", v); err == nil {
		return t.Format(isoDate), true
	}

	return raw, false
}

// ParseFloat safely parses a vendor numeric value. It returns nil, not zero,
// for empty or invalid input so absence stays distinguishable from 0.
func ParseFloat(raw string) *float64 {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	v = strings.ReplaceAll(strings.TrimPrefix(v, "$"), ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseInt safely parses a vendor integer value, returning nil for empty or
// invalid input.
func ParseInt(raw string) *int {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// ParseAmount parses a donation amount, defaulting to 0 for empty or invalid
// input. Donations always carry a concrete amount so downstream aggregate
// sums never propagate an absence. Negative values clamp to 0.
func ParseAmount(raw string) float64 {
	f := ParseFloat(raw)
	if f == nil || *f < 0 {
		return 0
	}
	return *f
}

// CustomFieldKey namespaces a vendor-specific field name so values from
// different providers never collide in the CustomFields bag.
func CustomFieldKey(provider Provider, field string) string {
	return string(provider) + ":" + field
}
