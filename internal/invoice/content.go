package invoice

import (
	"fmt"
	"mime"
	"strings"
)

// ClassifyContentType maps a declared MIME type onto the extraction path.
// Parameters such as "; charset=..." are ignored.
func ClassifyContentType(contentType string) (Kind, error) {
	mediaType := MediaType(contentType)

	switch {
	case mediaType == "application/pdf" || mediaType == "application/x-pdf":
		return KindPDF, nil
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage, nil
	default:
		return "", NewError(ErrKindUnsupported, "ClassifyContentType",
			fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType))
	}
}

// MediaType returns the bare media type of contentType, lower-cased.
func MediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// DefaultFilename names an attachment whose sanitized filename came out empty.
func DefaultFilename(contentType string) string {
	mediaType := MediaType(contentType)
	switch {
	case mediaType == "application/pdf" || mediaType == "application/x-pdf":
		return "attachment.pdf"
	case strings.HasPrefix(mediaType, "image/"):
		ext := strings.TrimPrefix(mediaType, "image/")
		if ext == "jpeg" {
			ext = "jpg"
		}
		return "attachment." + SanitizeFilename(ext)
	default:
		return "attachment"
	}
}
