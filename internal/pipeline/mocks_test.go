package pipeline_test

import (
	"context"
	"sync"

	"github.com/dvloznov/invoice-ledger/internal/ai"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// MockAIClient is a mock implementation of ai.Client for testing.
type MockAIClient struct {
	CompleteFunc func(ctx context.Context, req ai.Request) (string, error)

	mu    sync.Mutex
	calls int
}

func (m *MockAIClient) Complete(ctx context.Context, req ai.Request) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "{}", nil
}

func (m *MockAIClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockTextExtractor is a mock implementation of extract.TextExtractor for testing.
type MockTextExtractor struct {
	ExtractTextFunc func(ctx context.Context, pdfBytes []byte) (string, error)

	mu    sync.Mutex
	calls int
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, pdfBytes)
	}
	return "INVOICE", nil
}

func (m *MockTextExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockFieldExtractor is a mock implementation of pipeline.FieldExtractor for testing.
type MockFieldExtractor struct {
	ExtractFunc func(ctx context.Context, data []byte, contentType string) (invoice.Fields, error)
}

func (m *MockFieldExtractor) Extract(ctx context.Context, data []byte, contentType string) (invoice.Fields, error) {
	return m.ExtractFunc(ctx, data, contentType)
}

// MockSink is a mock implementation of pipeline.OutcomeSink for testing.
type MockSink struct {
	RecordOutcomeFunc func(ctx context.Context, att invoice.RawAttachment, out pipeline.Outcome) error

	mu       sync.Mutex
	outcomes []pipeline.Outcome
}

func (m *MockSink) RecordOutcome(ctx context.Context, att invoice.RawAttachment, out pipeline.Outcome) error {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, out)
	m.mu.Unlock()
	if m.RecordOutcomeFunc != nil {
		return m.RecordOutcomeFunc(ctx, att, out)
	}
	return nil
}

func (m *MockSink) Outcomes() []pipeline.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.Outcome(nil), m.outcomes...)
}
