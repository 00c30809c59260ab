/*
Package report writes tabular reports (subsidy lists, transaction history).

PURPOSE:
  The engines return plain records. This package turns them into a Table
  and writes the table in a file format. It never computes a price or a
  total itself: every amount comes from the record it was built from.

FORMATS:
  csv:  Semicolon separated, UTF-8 with BOM so spreadsheet tools detect
        the encoding
  json: {"title", "columns", "rows", "footer"}

SEE ALSO:
  - tables.go: Table builders for the engine records
  - api/handlers.go: Export endpoints
*/
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/pricing"
)

// Table is a titled grid of strings. Footer is an optional totals row.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Footer  []string   `json:"footer,omitempty"`
}

// Writer encodes a table.
type Writer interface {
	Write(w io.Writer, t Table) error
	ContentType() string
	Extension() string
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// WriterFor returns the writer of a format. Empty means CSV.
func WriterFor(format string) (Writer, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case "", FormatCSV:
		return CSVWriter{}, nil
	case FormatJSON:
		return JSONWriter{}, nil
	default:
		return nil, &pricing.InputError{Field: "format", Value: format, Reason: "expected csv or json"}
	}
}

// =============================================================================
// CSV
// =============================================================================

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type CSVWriter struct{}

func (CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }
func (CSVWriter) Extension() string   { return "csv" }

func (CSVWriter) Write(w io.Writer, t Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		if err := cw.Write(t.Footer); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// =============================================================================
// JSON
// =============================================================================

type JSONWriter struct{}

func (JSONWriter) ContentType() string { return "application/json" }
func (JSONWriter) Extension() string   { return "json" }

func (JSONWriter) Write(w io.Writer, t Table) error {
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// =============================================================================
// HELPERS
// =============================================================================

// Filename builds "<prefix>_<event>.<ext>" with spaces replaced.
func Filename(prefix string, eventID pricing.EventID, w Writer) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, eventID, w.Extension())
	return strings.ReplaceAll(name, " ", "_")
}

// money formats an amount with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
