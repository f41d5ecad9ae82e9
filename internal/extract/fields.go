package extract

import (
	"context"
	"fmt"

	"github.com/dvloznov/invoice-ledger/internal/ai"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
)

// FieldExtractor turns a document into invoice.Fields with one AI call.
// PDFs go through the TextExtractor first; images are sent to the model as
// visual input.
type FieldExtractor struct {
	ai           ai.Client
	text         TextExtractor
	organization string
}

// NewFieldExtractor creates a FieldExtractor. organization is the processing
// organization's own name, which the model is told is never the seller.
func NewFieldExtractor(client ai.Client, text TextExtractor, organization string) *FieldExtractor {
	return &FieldExtractor{
		ai:           client,
		text:         text,
		organization: organization,
	}
}

// Extract returns the normalized fields for one document. Unsupported content
// types fail before anything else runs; every other failure is an extraction error.
func (e *FieldExtractor) Extract(ctx context.Context, data []byte, contentType string) (invoice.Fields, error) {
	kind, err := invoice.ClassifyContentType(contentType)
	if err != nil {
		return invoice.Fields{}, err
	}

	var req ai.Request
	switch kind {
	case invoice.KindImage:
		req = e.imageRequest(data, contentType)
	case invoice.KindPDF:
		req, err = e.pdfRequest(ctx, data)
		if err != nil {
			return invoice.Fields{}, invoice.NewError(invoice.ErrKindExtraction, "extract text", err)
		}
	}

	raw, err := e.ai.Complete(ctx, req)
	if err != nil {
		return invoice.Fields{}, invoice.NewError(invoice.ErrKindExtraction, "AI completion", err)
	}

	fields, err := invoice.ParseFields(raw, e.organization)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Debug().Str("raw_response", truncate(raw, 500)).Msg("Unparsable model response")
		return invoice.Fields{}, invoice.NewError(invoice.ErrKindExtraction, "parse AI response", err)
	}

	return fields, nil
}

func (e *FieldExtractor) imageRequest(data []byte, contentType string) ai.Request {
	return ai.Request{
		System: systemPrompt,
		Messages: []ai.Message{
			{
				Role:         ai.RoleUser,
				Text:         buildInstruction(e.organization),
				ImageDataURI: ai.ImageDataURI(invoice.MediaType(contentType), data),
			},
		},
	}
}

// pdfRequest puts the extracted document text in an assistant turn after the
// instruction, so the model treats it as known context rather than a user claim.
func (e *FieldExtractor) pdfRequest(ctx context.Context, data []byte) (ai.Request, error) {
	if e.text == nil {
		return ai.Request{}, fmt.Errorf("no text extractor configured")
	}

	text, err := e.text.ExtractText(ctx, data)
	if err != nil {
		return ai.Request{}, err
	}

	return ai.Request{
		System: systemPrompt,
		Messages: []ai.Message{
			{Role: ai.RoleUser, Text: buildInstruction(e.organization)},
			{Role: ai.RoleAssistant, Text: text},
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
