package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/storage"
)

// PipelineStep represents a single step in attachment processing.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Attachment invoice.RawAttachment
	Checksum   string
	Filename   string
	Fields     invoice.Fields
	Folder     string
	Stage      Stage
}

// Step 1: SanitizeStep derives the storage filename.
type SanitizeStep struct{}

func (s *SanitizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Filename = StorageFilename(state.Attachment)
	state.Stage = StageSanitized
	return nil
}

// StorageFilename is the object name att is stored under. Names the storage
// layer would refuse, such as "" or "..", fall back to invoice.DefaultFilename.
func StorageFilename(att invoice.RawAttachment) string {
	name := invoice.SanitizeFilename(att.Filename)
	if !storage.ValidName(name) {
		name = invoice.SanitizeFilename(invoice.DefaultFilename(att.ContentType))
	}
	return name
}

// Step 2: ExtractStep asks the field extractor for the invoice fields.
type ExtractStep struct {
	Extractor FieldExtractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	fields, err := s.Extractor.Extract(ctx, state.Attachment.Data, state.Attachment.ContentType)
	if err != nil {
		return err
	}
	state.Fields = fields
	state.Stage = StageExtracted
	return nil
}

// Step 3: ValidateStep enforces the required fields.
type ValidateStep struct{}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	fields, err := invoice.Validate(state.Fields)
	if err != nil {
		return err
	}
	state.Fields = fields
	state.Stage = StageValidated
	return nil
}

// Step 4: CommitStep uploads the file and appends the ledger row.
type CommitStep struct {
	Committer Committer
}

func (s *CommitStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Committer.Commit(ctx, state.Fields, state.Attachment.Data, state.Filename, state.Attachment.ContentType)
	if res.Folder != "" {
		state.Folder = res.Folder
	}
	if err != nil {
		return err
	}
	state.Stage = StageCommitted
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// StepError reports which step of a pipeline failed.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %d failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Execute runs all steps sequentially, stopping at the first error. A panic
// in a step is returned as that step's error.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := runStep(ctx, step, state); err != nil {
			return &StepError{Step: i + 1, Err: err}
		}
	}
	return nil
}

func runStep(ctx context.Context, step PipelineStep, state *PipelineState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return step.Execute(ctx, state)
}

// NewAttachmentPipeline creates the standard sanitize, extract, validate,
// commit sequence.
func NewAttachmentPipeline(extractor FieldExtractor, committer Committer) *Pipeline {
	return NewPipeline(
		&SanitizeStep{},
		&ExtractStep{Extractor: extractor},
		&ValidateStep{},
		&CommitStep{Committer: committer},
	)
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
