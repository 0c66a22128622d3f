// Package currency parses localized currency strings into exact decimals.
package currency

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when text does not parse as a decimal
// amount once currency symbols and separators are removed.
var ErrMalformedAmount = errors.New("malformed amount")

// Format fixes the separators of a known locale. The zero value detects
// separators from the text itself (see Parse).
type Format struct {
	Decimal   rune
	Thousands rune
}

var (
	// US is 1,234.56.
	US = Format{Decimal: '.', Thousands: ','}
	// European is 1.234,56.
	European = Format{Decimal: ',', Thousands: '.'}
)

// Parse converts text such as "$1,234.56", "-4,50 EUR", "(12.00)" or
// "100.00 DR" into a signed decimal, detecting the decimal separator:
//   - with both '.' and ',' present, the right-most one is the decimal separator
//   - a separator that occurs more than once groups thousands
//   - a single ',' followed by exactly three digits groups thousands
//   - otherwise the single separator is the decimal separator
//
// Grouped integer parts must use groups of three digits after the first.
func Parse(text string) (decimal.Decimal, error) {
	return Format{}.Parse(text)
}

// Parse converts text using the separators of f. A zero Format falls back
// to detection.
func (f Format) Parse(text string) (decimal.Decimal, error) {
	neg, body, err := split(text)
	if err != nil {
		return decimal.Decimal{}, err
	}

	dec, thousands := f.Decimal, f.Thousands
	if dec == 0 {
		dec, thousands = detect(body)
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	var (
		seenDecimal bool
		groups      int // grouping separators seen
		run         int // digits since the last separator
	)
	badGroup := func() bool {
		if groups == 0 {
			return run == 0 || run > 3
		}
		return run != 3
	}
	for i, r := range body {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			run++
		case r == '\'' || (thousands != 0 && r == thousands):
			if seenDecimal {
				return decimal.Decimal{}, fmt.Errorf("%w: %q: grouping after decimal separator", ErrMalformedAmount, text)
			}
			if badGroup() {
				return decimal.Decimal{}, fmt.Errorf("%w: %q: digit groups must be three digits", ErrMalformedAmount, text)
			}
			groups++
			run = 0
		case r == dec:
			if seenDecimal {
				return decimal.Decimal{}, fmt.Errorf("%w: %q: repeated decimal separator", ErrMalformedAmount, text)
			}
			if i == len(body)-1 {
				return decimal.Decimal{}, fmt.Errorf("%w: %q: no digits after decimal separator", ErrMalformedAmount, text)
			}
			if groups > 0 && run != 3 {
				return decimal.Decimal{}, fmt.Errorf("%w: %q: digit groups must be three digits", ErrMalformedAmount, text)
			}
			if b.Len() == 0 || (neg && b.Len() == 1) {
				b.WriteByte('0')
			}
			b.WriteByte('.')
			seenDecimal = true
			run = 0
		default:
			return decimal.Decimal{}, fmt.Errorf("%w: %q: unexpected %q", ErrMalformedAmount, text, r)
		}
	}
	if !seenDecimal && groups > 0 && run != 3 {
		return decimal.Decimal{}, fmt.Errorf("%w: %q: digit groups must be three digits", ErrMalformedAmount, text)
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q: %v", ErrMalformedAmount, text, err)
	}
	return d, nil
}

// split strips currency symbols, whitespace and an ISO 4217 style code, and
// pulls the sign off text. A trailing "DR" marks a debit and "CR" a credit.
// The returned body holds only the remaining characters.
func split(text string) (neg bool, body string, err error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, text)

	marker := ""
	if n := len(s); n > 2 && (s[n-2:] == "DR" || s[n-2:] == "CR") && isDigitOrParen(s[n-3]) {
		marker, s = s[n-2:], s[:n-2]
	}
	s, code := stripCode(s)

	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		neg, s = true, s[1:len(s)-1]
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		neg, s = true, s[:len(s)-1]
	}
	if code == "" {
		// "-EUR 4.50"
		s, _ = stripCode(s)
	}

	if marker != "" {
		if neg {
			return false, "", fmt.Errorf("%w: %q: both a sign and %s", ErrMalformedAmount, text, marker)
		}
		neg = marker == "DR"
	}

	if !strings.ContainsAny(s, "0123456789") {
		return false, "", fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	return neg, s, nil
}

// stripCode removes a three-letter uppercase currency code from either end
// of s and returns it.
func stripCode(s string) (rest, code string) {
	if len(s) <= 3 {
		return s, ""
	}
	if isCode(s[:3]) {
		return s[3:], s[:3]
	}
	if isCode(s[len(s)-3:]) {
		return s[:len(s)-3], s[len(s)-3:]
	}
	return s, ""
}

func isCode(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func isDigitOrParen(c byte) bool {
	return c >= '0' && c <= '9' || c == ')'
}

func detect(body string) (dec, thousands rune) {
	dots := strings.Count(body, ".")
	commas := strings.Count(body, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(body, ".") > strings.LastIndex(body, ",") {
			return '.', ','
		}
		return ',', '.'
	case commas > 1:
		return '.', ','
	case commas == 1:
		if len(body)-strings.Index(body, ",")-1 == 3 {
			return '.', ','
		}
		return ',', 0
	case dots > 1:
		return ',', '.'
	default:
		return '.', 0
	}
}
