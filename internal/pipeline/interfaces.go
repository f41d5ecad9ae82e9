package pipeline

import (
	"context"

	"github.com/dvloznov/invoice-ledger/internal/commit"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
)

// FieldExtractor derives invoice fields from a document.
type FieldExtractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (invoice.Fields, error)
}

// Committer persists an accepted invoice.
type Committer interface {
	Commit(ctx context.Context, fields invoice.Fields, data []byte, filename, contentType string) (commit.Result, error)
}

// OutcomeSink receives every outcome after processing finishes, e.g. a run
// log or a mirror. Sink errors are logged and never change the outcome.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, att invoice.RawAttachment, out Outcome) error
}
