package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// continuePrompt closes a conversation whose last turn is an assistant turn.
const continuePrompt = "Respond now with the JSON object only."

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string
	Model  string

	// RequestsPerMinute caps model calls across all goroutines. 0 disables the cap.
	RequestsPerMinute int
}

// GeminiClient is the Client implementation backed by google.golang.org/genai.
// One instance is created at startup and shared by every pipeline invocation.
type GeminiClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGeminiClient creates a GeminiClient. An empty APIKey falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by genai itself.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		limiter: newLimiter(cfg.RequestsPerMinute),
	}, nil
}

// Complete sends the request to Gemini and returns the response text.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	contents, err := toGenaiContents(req.Messages)
	if err != nil {
		return "", fmt.Errorf("Complete: %w", err)
	}

	var config *genai.GenerateContentConfig
	if req.System != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: req.System}},
			},
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("Complete: rate limiter: %w", err)
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Complete: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Complete: empty response from model")
	}

	return text, nil
}

// toGenaiContents maps conversation turns onto genai contents. Assistant turns
// become genai "model" turns; image data URIs become inline blobs carrying the
// MIME type declared in the URI.
func toGenaiContents(messages []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))

	for i, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, &genai.Part{Text: m.Text})
		}
		if m.ImageDataURI != "" {
			mimeType, data, err := ParseDataURI(m.ImageDataURI)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: mimeType,
					Data:     data,
				},
			})
		}

		if len(parts) == 0 {
			return nil, fmt.Errorf("message %d: no text or image", i)
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	// Gemini expects a conversation to end on a user turn.
	if n := len(contents); n > 0 && contents[n-1].Role == "model" {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: continuePrompt}},
		})
	}

	return contents, nil
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}
