// Package ledger encodes the per-month CSV ledger that sits next to the
// committed invoice files.
package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/invoice-ledger/internal/encoding"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
)

// DefaultFilename is the ledger file name used when none is configured.
const DefaultFilename = "invoices.csv"

// Header is the first line of every ledger file.
const Header = "Timestamp,Invoice Date,Seller,Total,Tax,Payment Method"

const (
	numFields    = 6
	colTimestamp = 0
	colDate      = 1
	colSeller    = 2
	colTotal     = 3
	colTax       = 4
	colPayment   = 5
)

// Row is one committed invoice.
type Row struct {
	Timestamp time.Time
	Fields    invoice.Fields
}

// NewRow stamps fields with the processing time.
func NewRow(fields invoice.Fields, processedAt time.Time) Row {
	return Row{Timestamp: processedAt.UTC(), Fields: fields}
}

// HeaderContent returns the content of a freshly created ledger.
func HeaderContent() []byte {
	return []byte(Header + "\n")
}

// Marshal converts a Row to CSV fields.
func Marshal(row Row) []string {
	rec := make([]string, numFields)
	rec[colTimestamp] = row.Timestamp.UTC().Format(time.RFC3339)
	rec[colDate] = row.Fields.InvoiceDate
	rec[colSeller] = row.Fields.Seller
	rec[colTotal] = formatAmount(row.Fields.Total)
	rec[colTax] = formatAmount(row.Fields.Tax)
	rec[colPayment] = row.Fields.PaymentMethod
	return rec
}

// Unmarshal converts CSV fields back to a Row.
func Unmarshal(rec []string) (Row, error) {
	if len(rec) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}

	ts, err := time.Parse(time.RFC3339, rec[colTimestamp])
	if err != nil {
		return Row{}, fmt.Errorf("parsing timestamp %q: %w", rec[colTimestamp], err)
	}

	return Row{
		Timestamp: ts.UTC(),
		Fields: invoice.Fields{
			InvoiceDate:   rec[colDate],
			Seller:        rec[colSeller],
			Total:         rec[colTotal],
			Tax:           rec[colTax],
			PaymentMethod: rec[colPayment],
		},
	}, nil
}

// Append returns existing with rows added at the end. Empty existing content
// gets the header first. Existing content is normalized to UTF-8 and is
// otherwise kept byte for byte.
func Append(existing []byte, rows ...Row) ([]byte, error) {
	content, err := encoding.DecodeUTF8(existing)
	if err != nil {
		return nil, fmt.Errorf("Append: decode existing ledger: %w", err)
	}

	var buf bytes.Buffer
	if len(bytes.TrimSpace(content)) == 0 {
		buf.WriteString(Header + "\n")
	} else {
		buf.Write(content)
		if content[len(content)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	cw := csv.NewWriter(&buf)
	for i, row := range rows {
		if err := cw.Write(Marshal(row)); err != nil {
			return nil, fmt.Errorf("Append: writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("Append: flush: %w", err)
	}

	return buf.Bytes(), nil
}

// ReadRows reads every data row from a ledger. The header line is skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	utf8r, err := encoding.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadRows: detect encoding: %w", err)
	}

	cr := csv.NewReader(utf8r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadRows: reading ledger CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if strings.Join(records[0], ",") == Header {
		start = 1
	}

	var rows []Row
	for i, rec := range records[start:] {
		row, err := Unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("ReadRows: row %d: %w", i+start+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// formatAmount renders numeric values with two decimals. Anything else, such
// as a "19%" tax rate, is kept verbatim.
func formatAmount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "%") {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.StringFixed(2)
}
