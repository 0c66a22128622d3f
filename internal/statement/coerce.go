package statement

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/currency"
)

const (
	datePrefix  = "date"
	amountField = "amount"
)

// DefaultDateLayouts are tried in order for every date group: day-month-year
// first, then ISO year-month-day.
var DefaultDateLayouts = []string{"02-01-2006", "2006-01-02"}

// Coercer turns a captured group into its typed value based on the group
// name: "date*" groups become civil.Date, "amount" becomes decimal.Decimal,
// everything else stays a string.
type Coercer struct {
	DateLayouts []string
	ParseAmount func(string) (decimal.Decimal, error)
}

// DefaultCoercer uses DefaultDateLayouts and currency.Parse.
func DefaultCoercer() Coercer {
	return Coercer{
		DateLayouts: DefaultDateLayouts,
		ParseAmount: currency.Parse,
	}
}

// Coerce converts raw for the group name. When present is false the group
// did not participate in the match and nil is returned untouched.
func (c Coercer) Coerce(name, raw string, present bool) (any, error) {
	if !present {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(name, datePrefix):
		d, err := c.parseDate(raw)
		if err != nil {
			return nil, &FieldError{Field: name, Value: raw, Err: err}
		}
		return d, nil
	case name == amountField:
		parse := c.ParseAmount
		if parse == nil {
			parse = currency.Parse
		}
		amt, err := parse(raw)
		if err != nil {
			return nil, &FieldError{Field: name, Value: raw, Err: err}
		}
		return amt, nil
	default:
		return raw, nil
	}
}

func (c Coercer) parseDate(raw string) (civil.Date, error) {
	layouts := c.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("%w: %q does not match %s", ErrUnparseableDate, raw, strings.Join(layouts, " or "))
}
