package model

import (
	"fmt"
	"maps"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/statement"
)

// Field names with a dedicated Transaction field.
const (
	FieldDate         = "date"
	FieldDescription  = "description"
	FieldAmount       = "amount"
	FieldAccount      = "account"
	FieldCategory     = "category"
	FieldCounterparty = "counterparty"
	FieldReference    = "reference"
	FieldType         = "type"
)

// Transaction is one parsed statement line.
type Transaction struct {
	Date         civil.Date
	Description  string
	Amount       decimal.Decimal // negative = money out, positive = money in
	Account      string
	Category     string
	Counterparty string
	Reference    string
	Type         string // bank transaction type (ACH_DEBIT, etc.)

	// Extra holds every other field, such as a batch id supplied by the
	// caller or a balance column captured by the pattern.
	Extra statement.Fields
}

// NewTransaction builds a Transaction from merged line fields. Date,
// description and amount are required.
func NewTransaction(f statement.Fields) (Transaction, error) {
	date, err := f.Date(FieldDate)
	if err != nil {
		return Transaction{}, err
	}
	desc, err := f.String(FieldDescription)
	if err != nil {
		return Transaction{}, err
	}
	amount, err := f.Amount(FieldAmount)
	if err != nil {
		return Transaction{}, err
	}

	txn := Transaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
	}
	optional := []struct {
		name string
		dst  *string
	}{
		{FieldAccount, &txn.Account},
		{FieldCategory, &txn.Category},
		{FieldCounterparty, &txn.Counterparty},
		{FieldReference, &txn.Reference},
		{FieldType, &txn.Type},
	}
	for _, o := range optional {
		if *o.dst, err = f.OptionalString(o.name); err != nil {
			return Transaction{}, err
		}
	}

	for k, v := range f {
		if isCoreField(k) || v == nil {
			continue
		}
		if txn.Extra == nil {
			txn.Extra = statement.Fields{}
		}
		txn.Extra[k] = v
	}
	return txn, nil
}

// NewCategorizedTransaction is NewTransaction for formats whose lines must
// carry a category.
func NewCategorizedTransaction(f statement.Fields) (Transaction, error) {
	if _, err := f.String(FieldCategory); err != nil {
		return Transaction{}, err
	}
	return NewTransaction(f)
}

// Fields flattens the transaction back into a field mapping. Empty optional
// fields are left out.
func (t Transaction) Fields() statement.Fields {
	f := statement.Fields{
		FieldDate:        t.Date,
		FieldDescription: t.Description,
		FieldAmount:      t.Amount,
	}
	for name, v := range map[string]string{
		FieldAccount:      t.Account,
		FieldCategory:     t.Category,
		FieldCounterparty: t.Counterparty,
		FieldReference:    t.Reference,
		FieldType:         t.Type,
	} {
		if v != "" {
			f[name] = v
		}
	}
	maps.Copy(f, t.Extra)
	return f
}

// ExtraKeys returns the names in Extra, sorted.
func (t Transaction) ExtraKeys() []string {
	return slices.Sorted(maps.Keys(t.Extra))
}

// String renders a short human-readable form.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %s", t.Date, t.Description, t.Amount.StringFixed(2))
}

func isCoreField(name string) bool {
	switch name {
	case FieldDate, FieldDescription, FieldAmount, FieldAccount,
		FieldCategory, FieldCounterparty, FieldReference, FieldType:
		return true
	}
	return false
}
