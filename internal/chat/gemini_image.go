package chat

// gemini_image.go provides a REST client for Gemini image generation. It
// speaks the generateContent endpoint directly so status codes reach the
// retry classifier unchanged.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/generation"
)

// geminiBaseURL is the Gemini REST API base URL.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiImageClient calls Gemini image and text models via the REST API.
type GeminiImageClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface checks.
var (
	_ generation.Provider = (*GeminiImageClient)(nil)
	_ TextGenerator       = (*GeminiImageClient)(nil)
)

// NewGeminiImageClient creates a new REST client.
func NewGeminiImageClient(apiKey string) *GeminiImageClient {
	return &GeminiImageClient{
		apiKey:  apiKey,
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Image generation can take 10-30s
		},
	}
}

// --- REST API request/response types ---

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateImage sends the ordered parts as a single user turn and returns
// the first image in the response.
func (c *GeminiImageClient) GenerateImage(ctx context.Context, model string, parts []generation.Part) (*generation.Image, error) {
	startTime := time.Now()
	log.Debug().
		Str("model", model).
		Int("parts", len(parts)).
		Msg("Sending generateContent request to Gemini")

	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
		Contents: []geminiContent{{Role: "user", Parts: toGeminiParts(parts)}},
	}

	geminiResp, err := c.generateContent(ctx, model, req)
	if err != nil {
		return nil, err
	}

	result := &generation.Image{}
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && result.Data == nil {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				result.Data = decoded
				result.MIMEType = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}

	if result.Data == nil {
		return nil, fmt.Errorf("%w (text: %s)", generation.ErrNoImage, truncateString(result.Text, 200))
	}

	log.Debug().
		Int("output_bytes", len(result.Data)).
		Str("output_mime", result.MIMEType).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini image response received")

	return result, nil
}

// GenerateText sends a text-only prompt and returns the concatenated text
// of the response.
func (c *GeminiImageClient) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT"},
		},
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}

	geminiResp, err := c.generateContent(ctx, model, req)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	return text.String(), nil
}

// generateContent posts a request and decodes the response. Non-200 statuses
// and in-body errors become *generation.ProviderError.
func (c *GeminiImageClient) generateContent(ctx context.Context, model string, req geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini API returned error")
		return nil, &generation.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if geminiResp.Error != nil {
		return nil, &generation.ProviderError{
			StatusCode: geminiResp.Error.Code,
			Message:    geminiResp.Error.Message,
		}
	}
	return &geminiResp, nil
}

func toGeminiParts(parts []generation.Part) []geminiPart {
	out := make([]geminiPart, 0, len(parts))
	for _, p := range parts {
		if p.Data != nil {
			out = append(out, geminiPart{
				InlineData: &geminiBlobData{
					MIMEType: p.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(p.Data),
				},
			})
			continue
		}
		out = append(out, geminiPart{Text: p.Text})
	}
	return out
}

// errorMessage extracts the API error message from an error body, falling
// back to the truncated raw body.
func errorMessage(body []byte) string {
	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return truncateString(string(body), 200)
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
