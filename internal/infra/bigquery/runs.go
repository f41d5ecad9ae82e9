package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// Run statuses.
const (
	RunStatusCommitted = "COMMITTED"
	RunStatusFailed    = "FAILED"
)

// maxErrorMessage caps error_message.
const maxErrorMessage = 2000

// RunRow is one processed attachment in the processing_runs table.
type RunRow struct {
	RunID            string `bigquery:"run_id"`          // REQUIRED
	ChecksumSHA256   string `bigquery:"checksum_sha256"` // REQUIRED
	OriginalFilename string `bigquery:"original_filename"`
	Filename         string `bigquery:"filename"`
	ContentType      string `bigquery:"content_type"`
	Source           string `bigquery:"source"`
	SizeBytes        int64  `bigquery:"size_bytes"`

	Status       string `bigquery:"status"` // REQUIRED
	Stage        string `bigquery:"stage"`
	ErrorKind    string `bigquery:"error_kind"`
	ErrorMessage string `bigquery:"error_message"`
	Folder       string `bigquery:"folder"`

	InvoiceDate   bigquery.NullDate `bigquery:"invoice_date"`
	Seller        string            `bigquery:"seller"`
	Total         string            `bigquery:"total"`
	Tax           string            `bigquery:"tax"`
	PaymentMethod string            `bigquery:"payment_method"`

	ProcessedTS time.Time `bigquery:"processed_ts"` // REQUIRED
}

// NewRunRow builds the run log row for one outcome.
func NewRunRow(att invoice.RawAttachment, out pipeline.Outcome, processedAt time.Time) *RunRow {
	row := &RunRow{
		RunID:            uuid.NewString(),
		ChecksumSHA256:   out.Checksum,
		OriginalFilename: att.Filename,
		Filename:         out.Filename,
		ContentType:      att.ContentType,
		Source:           att.Source,
		SizeBytes:        int64(len(att.Data)),
		Status:           RunStatusFailed,
		Stage:            string(out.Stage),
		ErrorKind:        string(out.Kind),
		ErrorMessage:     truncateMessage(out.Error),
		Folder:           out.Folder,
		ProcessedTS:      processedAt.UTC(),
	}
	if out.OK {
		row.Status = RunStatusCommitted
	}

	if out.Fields != nil {
		row.InvoiceDate = parseNullDate(out.Fields.InvoiceDate)
		row.Seller = out.Fields.Seller
		row.Total = out.Fields.Total
		row.Tax = out.Fields.Tax
		row.PaymentMethod = out.Fields.PaymentMethod
	}

	return row
}

func parseNullDate(s string) bigquery.NullDate {
	d, err := civil.ParseDate(s)
	if err != nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: d, Valid: true}
}

func truncateMessage(msg string) string {
	if len(msg) > maxErrorMessage {
		return msg[:maxErrorMessage]
	}
	return msg
}
