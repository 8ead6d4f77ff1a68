package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/brand-studio/internal/generation"
)

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// SDKImageClient implements generation.Provider and TextGenerator on top of
// the google.golang.org/genai SDK. SDK errors surface as genai.APIError,
// which generation.Classify understands.
type SDKImageClient struct {
	client *genai.Client
}

var (
	_ generation.Provider = (*SDKImageClient)(nil)
	_ TextGenerator       = (*SDKImageClient)(nil)
)

// NewSDKImageClient wraps an existing genai client.
func NewSDKImageClient(client *genai.Client) *SDKImageClient {
	return &SDKImageClient{client: client}
}

// GenerateImage sends the ordered parts and returns the first inline image.
func (c *SDKImageClient) GenerateImage(ctx context.Context, model string, parts []generation.Part) (*generation.Image, error) {
	startTime := time.Now()

	genaiParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Data != nil {
			genaiParts = append(genaiParts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
			})
			continue
		}
		genaiParts = append(genaiParts, &genai.Part{Text: p.Text})
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	contents := []*genai.Content{{Role: "user", Parts: genaiParts}}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}

	result := &generation.Image{}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && result.Data == nil {
				result.Data = part.InlineData.Data
				result.MIMEType = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w (text: %s)", generation.ErrNoImage, truncateString(result.Text, 200))
	}

	log.Debug().
		Str("model", model).
		Int("output_bytes", len(result.Data)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini SDK image response received")
	return result, nil
}

// GenerateText sends a text-only prompt.
func (c *SDKImageClient) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
