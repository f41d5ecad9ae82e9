// Package pipeline turns one raw attachment into a committed invoice or a
// failure outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
)

// DefaultBatchConcurrency bounds ProcessBatch when no limit is given.
const DefaultBatchConcurrency = 4

// Processor runs attachments through the pipeline.
type Processor struct {
	pipeline *Pipeline
	sinks    []OutcomeSink
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithSinks registers sinks that see every outcome.
func WithSinks(sinks ...OutcomeSink) ProcessorOption {
	return func(p *Processor) {
		for _, s := range sinks {
			if s != nil {
				p.sinks = append(p.sinks, s)
			}
		}
	}
}

// WithPipeline replaces the standard step sequence.
func WithPipeline(pl *Pipeline) ProcessorOption {
	return func(p *Processor) { p.pipeline = pl }
}

// NewProcessor creates a Processor running the standard attachment pipeline.
func NewProcessor(extractor FieldExtractor, committer Committer, opts ...ProcessorOption) *Processor {
	p := &Processor{pipeline: NewAttachmentPipeline(extractor, committer)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAttachment runs att through the pipeline. It never panics and never
// returns an error; every failure is reported in the Outcome.
func (p *Processor) ProcessAttachment(ctx context.Context, att invoice.RawAttachment) (out Outcome) {
	start := time.Now()
	state := &PipelineState{
		Attachment: att,
		Checksum:   Checksum(att.Data),
		Filename:   StorageFilename(att),
		Stage:      StageReceived,
	}

	log := logger.FromContext(ctx).With().
		Str("attachment", att.Filename).
		Str("content_type", att.ContentType).
		Str("source", att.Source).
		Str("checksum", state.Checksum).
		Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			out = failure(state, fmt.Errorf("panic: %v", r))
		}
		p.record(ctx, att, out)
	}()

	log.Info().Int("bytes", len(att.Data)).Msg("Processing attachment")

	if err := p.pipeline.Execute(ctx, state); err != nil {
		out = failure(state, err)
		log.Warn().
			Str("stage", string(out.Stage)).
			Str("kind", string(out.Kind)).
			Str("error", out.Error).
			Dur("elapsed", time.Since(start)).
			Msg("Attachment failed")
		return out
	}

	fields := state.Fields
	out = Outcome{
		OK:       true,
		Filename: state.Filename,
		Stage:    state.Stage,
		Folder:   state.Folder,
		Fields:   &fields,
		Checksum: state.Checksum,
	}
	log.Info().
		Str("folder", out.Folder).
		Str("filename", out.Filename).
		Dur("elapsed", time.Since(start)).
		Msg("Attachment committed")
	return out
}

// ProcessBatch processes atts concurrently, at most limit at a time, and
// returns outcomes in input order.
func (p *Processor) ProcessBatch(ctx context.Context, atts []invoice.RawAttachment, limit int) []Outcome {
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	outcomes := make([]Outcome, len(atts))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range atts {
		g.Go(func() error {
			outcomes[i] = p.ProcessAttachment(ctx, atts[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Processor) record(ctx context.Context, att invoice.RawAttachment, out Outcome) {
	log := logger.FromContext(ctx)
	for _, sink := range p.sinks {
		if err := recordSafely(ctx, sink, att, out); err != nil {
			log.Error().Err(err).Msg("Failed to record outcome")
		}
	}
}

func recordSafely(ctx context.Context, sink OutcomeSink, att invoice.RawAttachment, out Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.RecordOutcome(ctx, att, out)
}

func failure(state *PipelineState, err error) Outcome {
	msg := err.Error()
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		msg = stepErr.Err.Error()
	}

	kind := invoice.KindOf(err)
	out := Outcome{
		OK:       false,
		Filename: state.Filename,
		Error:    msg,
		Kind:     kind,
		Stage:    failedStage(kind, state.Stage),
		Folder:   state.Folder,
		Checksum: state.Checksum,
	}
	if state.Stage == StageExtracted || state.Stage == StageValidated {
		fields := state.Fields
		out.Fields = &fields
	}
	return out
}
