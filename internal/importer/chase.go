package importer

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

// Chase checking CSV export, e.g.
//
//	Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
//	DEBIT,01/03/2025,"GITHUB *PRO SUBSCRIPTION",-4.00,ACH_DEBIT,1230.00,,
//
// The header row matches no processor and is skipped.
const (
	chaseDateFormat = "01/02/2006"

	chasePattern = `^(?P<details>DEBIT|CREDIT|CHECK|DSLIP),` +
		`(?P<date>\d{2}/\d{2}/\d{4}),` +
		`"?(?P<description>[^"]*?)"?,` +
		`(?P<amount>-?\d+(?:\.\d+)?),` +
		`(?P<type>[A-Z_]+),` +
		`(?P<balance>[^,]*),` +
		`(?:(?P<check>\d+))?,?$`
)

// NewChase returns the importer for Chase checking CSV exports.
func NewChase(opts ...statement.Option) *Importer {
	imp := statement.New[model.Transaction]("chase", opts...)
	imp.Register(statement.MustProcessor("transaction", chasePattern, model.NewTransaction).
		WithDateLayouts(chaseDateFormat).
		WithClean(cleanChase))
	return imp
}

// cleanChase derives the reference and drops the columns that do not
// belong on a transaction.
func cleanChase(f statement.Fields) (statement.Fields, error) {
	date, ok := f[model.FieldDate].(civil.Date)
	if !ok {
		return nil, fmt.Errorf("chase: date group is %T", f[model.FieldDate])
	}
	desc, _ := f[model.FieldDescription].(string)

	f[model.FieldReference] = makeChaseRef(date, desc)
	delete(f, "details")
	delete(f, "balance")
	return f, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUBPROS.
func makeChaseRef(date civil.Date, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%04d%02d%02d_%s", date.Year, int(date.Month), date.Day, prefix)
}
