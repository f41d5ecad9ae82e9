package invoice

import (
	"fmt"
	"strings"
)

// Validate enforces the minimal completeness bar for committing an invoice:
// the invoice date and the total must be present. Every other field may be empty.
func Validate(f Fields) (Fields, error) {
	var missing []string
	if strings.TrimSpace(f.InvoiceDate) == "" {
		missing = append(missing, "invoice_date")
	}
	if strings.TrimSpace(f.Total) == "" {
		missing = append(missing, "total")
	}

	if len(missing) > 0 {
		return f, NewError(ErrKindValidation, "Validate",
			fmt.Errorf("%w: %s", ErrMissingRequiredFields, strings.Join(missing, ", ")))
	}

	return f, nil
}
