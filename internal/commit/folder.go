package commit

import (
	"fmt"
	"strings"
	"time"
)

// FolderLayout is the time layout of a period folder name.
const FolderLayout = "2006.01"

// FolderFor returns the "YYYY.MM" folder for an invoice date. Plain
// YYYY-MM-DD dates and RFC 3339 timestamps are accepted.
func FolderFor(invoiceDate string) (string, error) {
	s := strings.TrimSpace(invoiceDate)

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(FolderLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(FolderLayout), nil
	}

	return "", fmt.Errorf("FolderFor: unparsable invoice date %q", invoiceDate)
}
