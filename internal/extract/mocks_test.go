package extract

import (
	"context"

	"github.com/dvloznov/invoice-ledger/internal/ai"
)

// mockAIClient is a mock implementation of ai.Client for testing.
type mockAIClient struct {
	CompleteFunc func(ctx context.Context, req ai.Request) (string, error)
	calls        []ai.Request
}

func (m *mockAIClient) Complete(ctx context.Context, req ai.Request) (string, error) {
	m.calls = append(m.calls, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return `{"invoice_date":"","seller":"","total":"","tax":"","payment_method":""}`, nil
}

// mockTextExtractor is a mock implementation of TextExtractor for testing.
type mockTextExtractor struct {
	ExtractTextFunc func(ctx context.Context, pdfBytes []byte) (string, error)
}

func (m *mockTextExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, pdfBytes)
	}
	return "INVOICE\nTotal 10.00", nil
}
