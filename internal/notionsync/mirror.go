// Package notionsync mirrors committed invoices into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// Mirror keeps one Notion page per committed document, keyed by checksum.
type Mirror struct {
	notion     NotionService
	databaseID string
}

// NewMirror creates a Mirror writing into databaseID.
func NewMirror(notion NotionService, databaseID string) *Mirror {
	return &Mirror{notion: notion, databaseID: databaseID}
}

// MirrorInvoice creates the page for out, or updates it when a page with the
// same checksum exists. It returns the page ID.
func (m *Mirror) MirrorInvoice(ctx context.Context, out pipeline.Outcome) (string, error) {
	if !out.OK {
		return "", fmt.Errorf("MirrorInvoice: outcome for %q is not committed", out.Filename)
	}

	log := logger.FromContext(ctx)
	props := InvoiceToNotionProperties(out)

	existingID, err := m.findPageByChecksum(ctx, out.Checksum)
	if err != nil {
		return "", fmt.Errorf("MirrorInvoice: %w", err)
	}

	if existingID != "" {
		if err := m.notion.UpdatePage(ctx, existingID, props); err != nil {
			return "", fmt.Errorf("MirrorInvoice: %w", err)
		}
		log.Debug().Str("page_id", existingID).Msg("Updated Notion invoice page")
		return existingID, nil
	}

	pageID, err := m.notion.CreatePage(ctx, m.databaseID, props)
	if err != nil {
		return "", fmt.Errorf("MirrorInvoice: %w", err)
	}
	log.Debug().Str("page_id", pageID).Msg("Created Notion invoice page")
	return pageID, nil
}

// RecordOutcome implements pipeline.OutcomeSink. Failed outcomes are skipped.
func (m *Mirror) RecordOutcome(ctx context.Context, _ invoice.RawAttachment, out pipeline.Outcome) error {
	if !out.OK {
		return nil
	}
	_, err := m.MirrorInvoice(ctx, out)
	return err
}

func (m *Mirror) findPageByChecksum(ctx context.Context, checksum string) (string, error) {
	if checksum == "" {
		return "", nil
	}

	id, err := m.notion.FirstPageID(ctx, m.databaseID, checksumFilter(checksum))
	if err != nil {
		return "", fmt.Errorf("findPageByChecksum: %w", err)
	}
	return id, nil
}

func checksumFilter(checksum string) notionapi.Filter {
	return &notionapi.PropertyFilter{
		Property: PropChecksum,
		RichText: &notionapi.TextFilterCondition{Equals: checksum},
	}
}

var _ pipeline.OutcomeSink = (*Mirror)(nil)
