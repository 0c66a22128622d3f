package statement

import (
	"maps"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Fields maps a field name to its typed value: civil.Date for date groups,
// decimal.Decimal for amounts, string for other captures, and whatever type
// the caller supplied for extra fields.
//
// A key present with a nil value marks an optional group that did not take
// part in the match. It is distinct from a key that is missing altogether.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil f clones to an empty map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// Merge copies every entry of src over f.
func (f Fields) Merge(src Fields) {
	maps.Copy(f, src)
}

// Has reports whether name is set to a non-nil value.
func (f Fields) Has(name string) bool {
	return f[name] != nil
}

// IsAbsent reports whether name is present with the absent marker.
func (f Fields) IsAbsent(name string) bool {
	v, ok := f[name]
	return ok && v == nil
}

// String returns a required string field.
func (f Fields) String(name string) (string, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return "", missingField(name)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(name, v, "string")
	}
	return s, nil
}

// OptionalString returns a string field, or "" when it is missing or absent.
// Values of other types are rejected.
func (f Fields) OptionalString(name string) (string, error) {
	if !f.Has(name) {
		return "", nil
	}
	return f.String(name)
}

// Date returns a required calendar date field.
func (f Fields) Date(name string) (civil.Date, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return civil.Date{}, missingField(name)
	}
	d, ok := v.(civil.Date)
	if !ok {
		return civil.Date{}, wrongType(name, v, "civil.Date")
	}
	return d, nil
}

// Amount returns a required decimal field.
func (f Fields) Amount(name string) (decimal.Decimal, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return decimal.Decimal{}, missingField(name)
	}
	d, ok := v.(decimal.Decimal)
	if !ok {
		return decimal.Decimal{}, wrongType(name, v, "decimal.Decimal")
	}
	return d, nil
}

// FieldsRecord is the identity constructor: the record is the merged field
// mapping itself.
func FieldsRecord(f Fields) (Fields, error) {
	return f, nil
}
