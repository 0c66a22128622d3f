package importer

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/currency"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

// FromConfig builds an importer declared in stmtimport.yaml. Processors are
// registered in the order they are listed.
func FromConfig(ic config.ImporterConfig, opts ...statement.Option) (*Importer, error) {
	enc, err := statement.LookupEncoding(ic.Encoding)
	if err != nil {
		return nil, fmt.Errorf("importer %s: %w", ic.Name, err)
	}
	format, err := amountFormat(ic.Decimal, ic.Thousands)
	if err != nil {
		return nil, fmt.Errorf("importer %s: %w", ic.Name, err)
	}

	imp := statement.New[model.Transaction](ic.Name, append(slices.Clip(opts), statement.WithEncoding(enc))...)
	for i, pc := range ic.Processors {
		name := pc.Name
		if name == "" {
			name = fmt.Sprintf("processor%d", i+1)
		}
		p, err := statement.NewProcessor(name, pc.Pattern, model.NewTransaction)
		if err != nil {
			return nil, fmt.Errorf("importer %s: %w", ic.Name, err)
		}

		coercer := statement.DefaultCoercer()
		coercer.ParseAmount = format.Parse
		if len(pc.DateLayouts) > 0 {
			coercer.DateLayouts = pc.DateLayouts
		}
		p = p.WithCoercer(coercer)
		if !pc.Clean.IsZero() {
			p = p.WithClean(buildClean(pc.Clean))
		}
		imp.Register(p)
	}
	return imp, nil
}

// AddConfigured registers every importer declared in cfgs. A name already in
// the registry is an error, so config cannot shadow a built-in format.
func (r *Registry) AddConfigured(cfgs []config.ImporterConfig, opts ...statement.Option) error {
	for _, ic := range cfgs {
		if r.Get(ic.Name) != nil {
			return fmt.Errorf("importer %s: already registered", ic.Name)
		}
		imp, err := FromConfig(ic, opts...)
		if err != nil {
			return err
		}
		r.Register(imp)
	}
	return nil
}

func amountFormat(dec, thousands string) (currency.Format, error) {
	if dec == "" {
		if thousands != "" {
			return currency.Format{}, fmt.Errorf("thousands separator %q set without a decimal separator", thousands)
		}
		return currency.Format{}, nil
	}
	d, err := singleRune("decimal", dec)
	if err != nil {
		return currency.Format{}, err
	}
	var th rune
	if thousands != "" {
		if th, err = singleRune("thousands", thousands); err != nil {
			return currency.Format{}, err
		}
	}
	if d == th {
		return currency.Format{}, fmt.Errorf("decimal and thousands separators are both %q", dec)
	}
	return currency.Format{Decimal: d, Thousands: th}, nil
}

func singleRune(what, s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, fmt.Errorf("%s separator %q must be a single character", what, s)
	}
	return r, nil
}

func buildClean(c config.CleanConfig) statement.CleanFunc {
	return func(f statement.Fields) (statement.Fields, error) {
		// Renames read the original values, so swaps and chains do not
		// depend on map order.
		moved := make(statement.Fields, len(c.Rename))
		for from, to := range c.Rename {
			if v, ok := f[from]; ok {
				moved[to] = v
			}
		}
		for from := range c.Rename {
			delete(f, from)
		}
		f.Merge(moved)
		for _, name := range c.Drop {
			delete(f, name)
		}
		mapString(f, c.Trim, func(s string) string { return strings.Join(strings.Fields(s), " ") })
		mapString(f, c.Upper, strings.ToUpper)
		mapString(f, c.Lower, strings.ToLower)
		for name, v := range c.Set {
			f[name] = v
		}
		if c.NegateAmount && f.Has(model.FieldAmount) {
			amt, ok := f[model.FieldAmount].(decimal.Decimal)
			if !ok {
				return nil, fmt.Errorf("negating amount: got %T", f[model.FieldAmount])
			}
			f[model.FieldAmount] = amt.Neg()
		}
		return f, nil
	}
}

func mapString(f statement.Fields, names []string, fn func(string) string) {
	for _, name := range names {
		if s, ok := f[name].(string); ok {
			f[name] = fn(s)
		}
	}
}
