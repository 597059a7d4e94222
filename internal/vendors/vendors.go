// Package vendors defines the wire-level types every vendor adapter
// produces. The sync engine never parses vendor wire formats directly: an
// adapter translates its vendor's HTTP/XML shapes into RawRecord batches and
// maps each raw record into the canonical model.
package vendors

import "strconv"

// RawRecord is one vendor record as loosely-typed key/value data. Field
// names are vendor-specific and must not leak past the adapter's mapping
// functions.
type RawRecord map[string]any

// String returns the named field as a string, tolerating missing fields and
// JSON's tendency to decode numbers as float64.
func (r RawRecord) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case float64:
		// Preserve integral IDs without a decimal point.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Page is one batch of raw records plus the vendor's continuation signal.
// The pagination safety governor bounds the loop independently of HasMore
// and NextCursor.
type Page struct {
	// HasMore reports the vendor's claim that more pages exist.
	HasMore bool

	// NextCursor is the opaque cursor for the next page, if any.
	NextCursor string

	// Records is the batch of raw vendor records.
	Records []RawRecord
}
