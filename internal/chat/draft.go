package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/assets"
	"github.com/fpang/brand-studio/internal/jsonutil"
	"github.com/fpang/brand-studio/internal/prompt"
)

// TextGenerator produces a text completion for a single prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// PersonaDraft is the model's suggestion for an audience persona.
type PersonaDraft struct {
	Description string   `json:"description"`
	AgeRange    string   `json:"ageRange"`
	Interests   []string `json:"interests"`
	PainPoints  []string `json:"painPoints"`
}

// ThemeDraft is the model's suggestion for a campaign theme.
type ThemeDraft struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// DraftSeed is the user-provided starting point for a draft.
type DraftSeed struct {
	Name        string
	Description string
	Brand       string
}

func (s DraftSeed) data() assets.DraftData {
	return assets.DraftData{
		Name:        prompt.Sanitize(s.Name),
		Description: prompt.Sanitize(s.Description),
		Brand:       prompt.Sanitize(s.Brand),
	}
}

// DraftPersona asks the model to fill in persona details. A response that
// is not valid JSON is returned as an ordinary error so the caller's retry
// policy treats it as transient.
func DraftPersona(ctx context.Context, gen TextGenerator, model string, seed DraftSeed) (*PersonaDraft, error) {
	return draft[PersonaDraft](ctx, gen, model, "persona", assets.RenderPersonaDraftPrompt(seed.data()))
}

// DraftTheme asks the model to fill in theme details.
func DraftTheme(ctx context.Context, gen TextGenerator, model string, seed DraftSeed) (*ThemeDraft, error) {
	return draft[ThemeDraft](ctx, gen, model, "theme", assets.RenderThemeDraftPrompt(seed.data()))
}

func draft[T any](ctx context.Context, gen TextGenerator, model, kind, instruction string) (*T, error) {
	startTime := time.Now()
	text, err := gen.GenerateText(ctx, model, instruction)
	if err != nil {
		return nil, err
	}
	out, err := jsonutil.ParseJSON[T](text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s draft: %w", kind, err)
	}
	log.Info().
		Str("kind", kind).
		Str("model", model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Draft generated")
	return &out, nil
}
