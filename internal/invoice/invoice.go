package invoice

// RawAttachment is one inbound document handed to the pipeline by a collaborator
// (HTTP intake, CLI directory scan, ...). It is never persisted as-is.
type RawAttachment struct {
	Data        []byte
	Filename    string
	ContentType string

	// Source labels where the attachment came from, for logs only.
	Source string
}

// Fields is the canonical set of values extracted from one invoice.
// Any value the model could not determine is the empty string.
type Fields struct {
	InvoiceDate   string `json:"invoice_date"`   // YYYY-MM-DD
	Seller        string `json:"seller"`
	Total         string `json:"total"`          // numeric, two-decimal semantics
	Tax           string `json:"tax"`            // numeric or percentage such as "19%"
	PaymentMethod string `json:"payment_method"`
}

// Kind is the family of document the pipeline knows how to extract.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)
