package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/brand-studio/internal/generation"
)

// newTestClient creates a client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *GeminiImageClient {
	return &GeminiImageClient{
		apiKey:     "test-key",
		baseURL:    server.URL,
		httpClient: server.Client(),
	}
}

func TestGenerateImage_SendsOrderedParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected API key in query")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		parts := req.Contents[0].Parts
		if len(parts) != 3 {
			t.Fatalf("expected 3 parts, got %d", len(parts))
		}
		if parts[0].InlineData == nil || parts[1].InlineData == nil {
			t.Error("expected image parts first")
		}
		if parts[2].Text != "make it pop" {
			t.Errorf("expected prompt text last, got %+v", parts[2])
		}

		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{
					{Text: "here you go"},
					{InlineData: &geminiBlobData{MIMEType: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("PNGDATA"))}},
				}},
			}},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	img, err := client.GenerateImage(context.Background(), "test-model", []generation.Part{
		{MIMEType: "image/png", Data: []byte("a")},
		{MIMEType: "image/jpeg", Data: []byte("b")},
		{Text: "make it pop"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(img.Data) != "PNGDATA" || img.MIMEType != "image/png" {
		t.Errorf("unexpected image: %+v", img)
	}
	if img.Text != "here you go" {
		t.Errorf("unexpected text: %q", img.Text)
	}
}

func TestGenerateImage_StatusBecomesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).GenerateImage(context.Background(), "m", []generation.Part{{Text: "x"}})
	var pe *generation.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", pe.StatusCode)
	}
	if pe.Message != "Resource has been exhausted" {
		t.Errorf("unexpected message: %q", pe.Message)
	}
	if generation.Classify(err).Kind != generation.KindRateLimited {
		t.Error("expected 429 to classify as rate limited")
	}
}

func TestGenerateImage_NoImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "I cannot draw that"}}}}},
		})
	}))
	defer server.Close()

	_, err := newTestClient(server).GenerateImage(context.Background(), "m", []generation.Part{{Text: "x"}})
	if !errors.Is(err, generation.ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if generation.Classify(err).Kind != generation.KindTransient {
		t.Error("missing payload should be transient")
	}
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "hello "}, {Text: "world"}}}}},
		})
	}))
	defer server.Close()

	text, err := newTestClient(server).GenerateText(context.Background(), "m", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("unexpected text %q", text)
	}
}

type fakeText struct {
	response string
	prompt   string
}

func (f *fakeText) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, nil
}

func TestDraftPersona(t *testing.T) {
	gen := &fakeText{response: "```json\n{\"description\":\"Parents juggling work\",\"ageRange\":\"30-45\",\"interests\":[\"meal prep\"],\"painPoints\":[\"no time\"]}\n```"}
	d, err := DraftPersona(context.Background(), gen, "m", DraftSeed{Name: "Busy <Parent>", Brand: "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.AgeRange != "30-45" || len(d.Interests) != 1 {
		t.Errorf("unexpected draft: %+v", d)
	}
	if !strings.Contains(gen.prompt, "Persona name: Busy Parent") {
		t.Errorf("seed should be sanitized into prompt: %q", gen.prompt)
	}
}

func TestDraftTheme_InvalidJSON(t *testing.T) {
	gen := &fakeText{response: "I would call it sunny vibes"}
	_, err := DraftTheme(context.Background(), gen, "m", DraftSeed{Name: "Summer"})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if generation.Classify(err).Kind != generation.KindTransient {
		t.Error("parse failures should be retryable")
	}
}
