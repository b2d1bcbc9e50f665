package store

import "time"

// Row is a single table row keyed by column name. Values are plain Go
// scalars (string, int, float64, bool, time.Time) so rows survive YAML
// snapshot round trips.
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the named column as a string, or "" when absent.
func (r Row) String(col string) string {
	if v, ok := r[col].(string); ok {
		return v
	}
	return ""
}

// Int returns the named column as an int. Numeric YAML values may come back
// as int, int64 or float64 depending on how they were written.
func (r Row) Int(col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the named column as a float64.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the named column as a bool.
func (r Row) Bool(col string) bool {
	if v, ok := r[col].(bool); ok {
		return v
	}
	return false
}

// Time returns the named column as a time.Time. String values are parsed as
// RFC 3339, which is how yaml.v3 serializes time.Time.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
