package pipeline

import (
	"github.com/dvloznov/invoice-ledger/internal/invoice"
)

// Stage is a point in the linear attachment lifecycle.
type Stage string

const (
	StageReceived  Stage = "received"
	StageSanitized Stage = "sanitized"
	StageExtracted Stage = "extracted"
	StageValidated Stage = "validated"
	StageCommitted Stage = "committed"

	StageExtractionFailed Stage = "extraction_failed"
	StageValidationFailed Stage = "validation_failed"
	StageCommitFailed     Stage = "commit_failed"
)

// Outcome is the result of processing one attachment. OK, Filename and Error
// are what callers act on; the other fields are diagnostics.
type Outcome struct {
	OK       bool              `json:"ok"`
	Filename string            `json:"filename"`
	Error    string            `json:"error,omitempty"`
	Kind     invoice.ErrorKind `json:"kind,omitempty"`
	Stage    Stage             `json:"stage"`
	Folder   string            `json:"folder,omitempty"`
	Fields   *invoice.Fields   `json:"fields,omitempty"`
	Checksum string            `json:"checksum_sha256"`
}

// failedStage maps an error kind to the terminal stage it ends in. Errors
// without a kind are attributed to the step that was running.
func failedStage(kind invoice.ErrorKind, last Stage) Stage {
	switch kind {
	case invoice.ErrKindUnsupported, invoice.ErrKindExtraction:
		return StageExtractionFailed
	case invoice.ErrKindValidation:
		return StageValidationFailed
	case invoice.ErrKindCommit:
		return StageCommitFailed
	}

	switch last {
	case StageExtracted:
		return StageValidationFailed
	case StageValidated, StageCommitted:
		return StageCommitFailed
	default:
		return StageExtractionFailed
	}
}
