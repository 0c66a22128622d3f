// Package export writes parsed transactions as CSV or JSON lines.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Header is the CSV header for the fixed transaction columns.
const Header = "date,description,amount,account,category,counterparty,reference,type"

const (
	numFields   = 8
	colDate     = 0
	colDesc     = 1
	colAmount   = 2
	colAccount  = 3
	colCategory = 4
	colCparty   = 5
	colRef      = 6
	colType     = 7
)

// Writer streams transactions to an output.
type Writer interface {
	Write(txn model.Transaction) error
	// Flush writes any buffered data and reports earlier write errors.
	Flush() error
}

// NewWriter returns a Writer for format "csv" or "json". extraCols lists
// the Extra fields written as additional CSV columns; JSON output always
// includes every field.
func NewWriter(w io.Writer, format string, extraCols []string) (Writer, error) {
	switch format {
	case "", "csv":
		return NewCSVWriter(w, extraCols), nil
	case "json":
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// FileExt returns the file extension for format.
func FileExt(format string) string {
	if format == "json" {
		return ".jsonl"
	}
	return ".csv"
}

// ExtraColumns returns the sorted union of the Extra field names in txns.
func ExtraColumns(txns []model.Transaction) []string {
	var cols []string
	for _, txn := range txns {
		for _, k := range txn.ExtraKeys() {
			if !slices.Contains(cols, k) {
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return cols
}

// WriteAll writes txns in format, with one CSV column per Extra field found.
func WriteAll(w io.Writer, format string, txns []model.Transaction) error {
	ew, err := NewWriter(w, format, ExtraColumns(txns))
	if err != nil {
		return err
	}
	for _, txn := range txns {
		if err := ew.Write(txn); err != nil {
			return err
		}
	}
	return ew.Flush()
}

// CSVWriter writes one CSV row per transaction. The header is written
// before the first row.
type CSVWriter struct {
	cw        *csv.Writer
	extraCols []string
	wroteHdr  bool
}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter(w io.Writer, extraCols []string) *CSVWriter {
	return &CSVWriter{cw: csv.NewWriter(w), extraCols: extraCols}
}

// WriteHeader writes the header row if it has not been written yet.
func (c *CSVWriter) WriteHeader() error {
	if c.wroteHdr {
		return nil
	}
	c.wroteHdr = true
	hdr := append(strings.Split(Header, ","), c.extraCols...)
	if err := c.cw.Write(hdr); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// Write writes txn as a CSV row.
func (c *CSVWriter) Write(txn model.Transaction) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	if err := c.cw.Write(MarshalTransaction(txn, c.extraCols)); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	return nil
}

// Flush flushes the underlying csv.Writer.
func (c *CSVWriter) Flush() error {
	c.cw.Flush()
	return c.cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row ([]string).
func MarshalTransaction(txn model.Transaction, extraCols []string) []string {
	row := make([]string, numFields+len(extraCols))
	row[colDate] = txn.Date.String()
	row[colDesc] = txn.Description
	row[colAmount] = txn.Amount.StringFixed(2)
	row[colAccount] = txn.Account
	row[colCategory] = txn.Category
	row[colCparty] = txn.Counterparty
	row[colRef] = txn.Reference
	row[colType] = txn.Type

	for i, name := range extraCols {
		if v := txn.Extra[name]; v != nil {
			row[numFields+i] = fmt.Sprint(v)
		}
	}
	return row
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	enc *json.Encoder
}

// NewJSONWriter creates a JSONWriter.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// Write encodes the transaction's fields; dates are YYYY-MM-DD and amounts
// are decimal strings.
func (j *JSONWriter) Write(txn model.Transaction) error {
	if err := j.enc.Encode(txn.Fields()); err != nil {
		return fmt.Errorf("encoding transaction: %w", err)
	}
	return nil
}

// Flush is a no-op; every Write goes straight to the underlying writer.
func (j *JSONWriter) Flush() error { return nil }
