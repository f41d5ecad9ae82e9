package invoice

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a terminal pipeline failure so operators can tell
// "the model returned nothing useful" apart from "the model call failed".
type ErrorKind string

const (
	ErrKindUnsupported ErrorKind = "unsupported_format"
	ErrKindExtraction  ErrorKind = "extraction"
	ErrKindValidation  ErrorKind = "validation"
	ErrKindCommit      ErrorKind = "commit"
)

// Error is a classified pipeline error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the name of the failing operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries no classification.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	// ErrUnsupportedContentType is returned for anything that is neither a PDF nor an image.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrMissingRequiredFields is returned when the invoice date or total is empty.
	ErrMissingRequiredFields = errors.New("missing required invoice fields")
)
