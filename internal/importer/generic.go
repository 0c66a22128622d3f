package importer

import (
	"strings"

	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

// Whitespace-separated "date description amount" lines, with the date either
// day-month-year or ISO. The last number on the line is always the amount,
// so descriptions may end in numbers ("CHECK 1234").
const (
	amountPattern     = `[-+(]?[\d,.']+\)?-?`
	genericDMYPattern = `^(?P<date>\d{2}-\d{2}-\d{4})\s+(?P<description>.+?)\s+(?P<amount>` + amountPattern + `)$`
	genericISOPattern = `^(?P<date>\d{4}-\d{2}-\d{2})\s+(?P<description>.+?)\s+(?P<amount>` + amountPattern + `)$`
)

// Fixed-width "date  description  amount  balance" lines. Columns are split
// by two or more spaces; single spaces belong to the description. The
// trailing balance column is optional and dropped.
const (
	columnarDMYPattern = `^(?P<date>\d{2}-\d{2}-\d{4})\s{2,}(?P<description>.+?)\s{2,}(?P<amount>` + amountPattern + `)(?:\s{2,}(?P<balance>` + amountPattern + `))?\s*$`
	columnarISOPattern = `^(?P<date>\d{4}-\d{2}-\d{2})\s{2,}(?P<description>.+?)\s{2,}(?P<amount>` + amountPattern + `)(?:\s{2,}(?P<balance>` + amountPattern + `))?\s*$`
)

// NewGeneric returns the importer for plain-text "date description amount"
// statements.
func NewGeneric(opts ...statement.Option) *Importer {
	imp := statement.New[model.Transaction]("generic", opts...)
	imp.Register(statement.MustProcessor("dmy", genericDMYPattern, model.NewTransaction).WithClean(cleanGeneric))
	imp.Register(statement.MustProcessor("iso", genericISOPattern, model.NewTransaction).WithClean(cleanGeneric))
	return imp
}

// NewColumnar returns the importer for fixed-width statements that print a
// running balance after the amount.
func NewColumnar(opts ...statement.Option) *Importer {
	imp := statement.New[model.Transaction]("columnar", opts...)
	imp.Register(statement.MustProcessor("dmy", columnarDMYPattern, model.NewTransaction).WithClean(cleanGeneric))
	imp.Register(statement.MustProcessor("iso", columnarISOPattern, model.NewTransaction).WithClean(cleanGeneric))
	return imp
}

func cleanGeneric(f statement.Fields) (statement.Fields, error) {
	if desc, ok := f[model.FieldDescription].(string); ok {
		f[model.FieldDescription] = strings.Join(strings.Fields(desc), " ")
	}
	delete(f, "balance")
	return f, nil
}
