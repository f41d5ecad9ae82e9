package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Role identifies who a conversation turn belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. A turn carries text, an image, or both.
type Message struct {
	Role Role
	Text string

	// ImageDataURI is a "data:<mime>;base64,<payload>" URI for visual input.
	ImageDataURI string
}

// Request is a single completion call.
type Request struct {
	System   string
	Messages []Message
}

// Client is the AI completion dependency. Implementations must be safe for
// concurrent use and return exactly one text payload per call.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ImageDataURI builds a data URI for data tagged with the given MIME type.
func ImageDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded payload.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("ParseDataURI: missing data: scheme")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("ParseDataURI: missing payload separator")
	}

	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("ParseDataURI: only base64 data URIs are supported")
	}
	if mimeType == "" {
		return "", nil, fmt.Errorf("ParseDataURI: missing MIME type")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("ParseDataURI: decode payload: %w", err)
	}

	return mimeType, data, nil
}
