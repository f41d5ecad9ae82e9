package notionsync

import (
	"path"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// Property names of the invoices database.
const (
	PropSeller        = "Seller"
	PropInvoiceDate   = "Invoice Date"
	PropTotal         = "Total"
	PropTax           = "Tax"
	PropPaymentMethod = "Payment Method"
	PropPeriod        = "Period"
	PropFile          = "File"
	PropChecksum      = "Checksum"
)

// InvoiceToNotionProperties converts a committed outcome to Notion properties.
func InvoiceToNotionProperties(out pipeline.Outcome) notionapi.Properties {
	title := out.Filename
	if out.Fields != nil && out.Fields.Seller != "" {
		title = out.Fields.Seller
	}

	props := notionapi.Properties{
		PropSeller: notionapi.TitleProperty{
			Title: richText(title),
		},
		PropFile: notionapi.RichTextProperty{
			RichText: richText(path.Join(out.Folder, out.Filename)),
		},
		PropChecksum: notionapi.RichTextProperty{
			RichText: richText(out.Checksum),
		},
	}

	if out.Folder != "" {
		props[PropPeriod] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: path.Base(out.Folder)},
		}
	}

	if out.Fields == nil {
		return props
	}
	f := out.Fields

	if d, err := time.Parse(time.DateOnly, f.InvoiceDate); err == nil {
		start := notionapi.Date(d)
		props[PropInvoiceDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		}
	}

	if total, err := decimal.NewFromString(strings.TrimSpace(f.Total)); err == nil {
		props[PropTotal] = notionapi.NumberProperty{
			Number: total.InexactFloat64(),
		}
	}

	if f.Tax != "" {
		props[PropTax] = notionapi.RichTextProperty{
			RichText: richText(f.Tax),
		}
	}

	if f.PaymentMethod != "" {
		props[PropPaymentMethod] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: selectName(f.PaymentMethod)},
		}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// selectName makes s usable as a select option; Notion rejects commas.
func selectName(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}
