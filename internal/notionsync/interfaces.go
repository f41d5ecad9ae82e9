package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is the slice of the Notion API the invoice mirror needs.
type NotionService interface {
	// CreatePage adds an invoice page to databaseID and returns its ID.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (string, error)

	// UpdatePage overwrites the properties of an existing invoice page.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) error

	// FirstPageID returns the ID of the first page in databaseID matching
	// filter, or "" when none does.
	FirstPageID(ctx context.Context, databaseID string, filter notionapi.Filter) (string, error)
}
