package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// Default dataset and table names.
const (
	DefaultDatasetID = "invoice_ledger"
	DefaultRunsTable = "processing_runs"
)

const runColumns = `
			run_id,
			checksum_sha256,
			original_filename,
			filename,
			content_type,
			source,
			size_bytes,
			status,
			stage,
			error_kind,
			error_message,
			folder,
			invoice_date,
			seller,
			total,
			tax,
			payment_method,
			processed_ts`

// RunRepository reads and writes the processing run log.
type RunRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	table     string
	now       func() time.Time
}

// NewRunRepository creates a RunRepository with a shared BigQuery client.
func NewRunRepository(ctx context.Context, projectID, datasetID, table string) (*RunRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewRunRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	if table == "" {
		table = DefaultRunsTable
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRunRepository: creating client: %w", err)
	}

	return &RunRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		table:     table,
		now:       time.Now,
	}, nil
}

// Close closes the BigQuery client.
func (r *RunRepository) Close() error {
	return r.client.Close()
}

func (r *RunRepository) tableRef() string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, r.table)
}

// InsertRun streams one row into the run log.
func (r *RunRepository) InsertRun(ctx context.Context, row *RunRow) error {
	inserter := r.client.Dataset(r.datasetID).Table(r.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertRun: inserting run %s: %w", row.RunID, err)
	}
	return nil
}

// FindRunByChecksum returns the newest committed run for checksum, or nil
// when the document was never committed.
func (r *RunRepository) FindRunByChecksum(ctx context.Context, checksum string) (*RunRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE checksum_sha256 = @checksum AND status = @status
		ORDER BY processed_ts DESC
		LIMIT 1
	`, runColumns, r.tableRef()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
		{Name: "status", Value: RunStatusCommitted},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindRunByChecksum: reading query: %w", err)
	}

	var row RunRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindRunByChecksum: iterating: %w", err)
	}

	return &row, nil
}

// ListRecentRuns returns up to limit runs, newest first.
func (r *RunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		ORDER BY processed_ts DESC
		LIMIT @limit
	`, runColumns, r.tableRef()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRuns: reading query: %w", err)
	}

	var runs []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}

// RecordOutcome implements pipeline.OutcomeSink. A committed outcome whose
// checksum was committed before is logged as a duplicate; it is still recorded.
func (r *RunRepository) RecordOutcome(ctx context.Context, att invoice.RawAttachment, out pipeline.Outcome) error {
	log := logger.FromContext(ctx)

	if out.OK && out.Checksum != "" {
		prev, err := r.FindRunByChecksum(ctx, out.Checksum)
		if err != nil {
			log.Warn().Err(err).Msg("Duplicate check failed")
		} else if prev != nil {
			log.Warn().
				Str("checksum", out.Checksum).
				Str("previous_run_id", prev.RunID).
				Str("previous_folder", prev.Folder).
				Str("previous_filename", prev.Filename).
				Msg("Document was already committed")
		}
	}

	row := NewRunRow(att, out, r.now())
	if err := r.InsertRun(ctx, row); err != nil {
		return fmt.Errorf("RecordOutcome: %w", err)
	}

	log.Debug().Str("run_id", row.RunID).Str("status", row.Status).Msg("Recorded processing run")
	return nil
}

var _ pipeline.OutcomeSink = (*RunRepository)(nil)
