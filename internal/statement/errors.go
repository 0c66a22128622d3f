package statement

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/stmtimport/internal/currency"
)

var (
	// ErrMalformedAmount is returned when an amount group is not a decimal.
	ErrMalformedAmount = currency.ErrMalformedAmount
	// ErrUnparseableDate is returned when a date group matches no layout.
	ErrUnparseableDate = errors.New("unparseable date")
	// ErrRecordConstruction is returned when merged fields do not satisfy
	// the record constructor.
	ErrRecordConstruction = errors.New("record construction failed")
)

// FieldError ties a coercion or construction failure to one field.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %q (%v): %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// LineError reports a statement line that matched a processor but could
// not be turned into a record. Number is 1-based and zero when the line
// was processed on its own rather than as part of a source.
type LineError struct {
	Importer  string
	Processor string
	Number    int
	Text      string
	Err       error
}

func (e *LineError) Error() string {
	if e.Number > 0 {
		return fmt.Sprintf("%s/%s: line %d %q: %v", e.Importer, e.Processor, e.Number, e.Text, e.Err)
	}
	return fmt.Sprintf("%s/%s: line %q: %v", e.Importer, e.Processor, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func missingField(name string) error {
	return &FieldError{Field: name, Err: fmt.Errorf("%w: required field missing", ErrRecordConstruction)}
}

func wrongType(name string, v any, want string) error {
	return &FieldError{Field: name, Value: v, Err: fmt.Errorf("%w: want %s, got %T", ErrRecordConstruction, want, v)}
}
