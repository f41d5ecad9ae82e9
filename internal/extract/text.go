package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/dvloznov/invoice-ledger/internal/encoding"
)

// DefaultRemoteTimeout bounds one call to a remote text extraction endpoint.
const DefaultRemoteTimeout = 30 * time.Second

// maxRemoteResponse caps how much extracted text is read from a remote endpoint.
const maxRemoteResponse = 16 << 20

// ErrNoText is returned when a PDF yields no text after trimming.
var ErrNoText = errors.New("no text extracted from PDF")

// TextExtractor produces plain text from a PDF buffer.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfBytes []byte) (string, error)
}

// NewTextExtractor picks the remote strategy when remoteURL is set and the
// local strategy otherwise.
func NewTextExtractor(remoteURL string, timeout time.Duration) TextExtractor {
	if strings.TrimSpace(remoteURL) != "" {
		return NewRemoteExtractor(remoteURL, timeout)
	}
	return NewLocalExtractor()
}

// RemoteExtractor delegates text extraction to an HTTP endpoint that accepts a
// PDF body and answers with plain text.
type RemoteExtractor struct {
	url    string
	client *http.Client
}

// NewRemoteExtractor creates a RemoteExtractor with its own transport timeout.
func NewRemoteExtractor(url string, timeout time.Duration) *RemoteExtractor {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteExtractor{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// ExtractText posts pdfBytes to the endpoint. Non-2xx answers are errors that
// carry the status code and reason.
func (e *RemoteExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(pdfBytes))
	if err != nil {
		return "", fmt.Errorf("RemoteExtractor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("RemoteExtractor: call %s: %w", e.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("RemoteExtractor: endpoint returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	utf8Body, err := encoding.NewUTF8Reader(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return "", fmt.Errorf("RemoteExtractor: detect encoding: %w", err)
	}

	body, err := io.ReadAll(utf8Body)
	if err != nil {
		return "", fmt.Errorf("RemoteExtractor: read response: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", ErrNoText
	}

	return text, nil
}

// LocalExtractor decodes PDFs in-process.
type LocalExtractor struct{}

// NewLocalExtractor creates a LocalExtractor.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// ExtractText decodes pdfBytes and returns its plain text.
func (e *LocalExtractor) ExtractText(_ context.Context, pdfBytes []byte) (string, error) {
	if len(pdfBytes) == 0 {
		return "", fmt.Errorf("LocalExtractor: empty PDF buffer")
	}
	if !bytes.HasPrefix(bytes.TrimLeft(pdfBytes, "\x00\t\n\r "), []byte("%PDF-")) {
		return "", fmt.Errorf("LocalExtractor: buffer is not a PDF (missing %%PDF- header)")
	}

	text, err := decodePDF(pdfBytes)
	if err != nil {
		return "", fmt.Errorf("LocalExtractor: decode PDF: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}

	return text, nil
}

// decodePDF runs the PDF decoder, turning decoder panics on malformed input
// into errors.
func decodePDF(pdfBytes []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decoder panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}

	return buf.String(), nil
}
