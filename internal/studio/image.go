package studio

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/assetstore"
	"github.com/fpang/brand-studio/internal/brief"
	"github.com/fpang/brand-studio/internal/generation"
	"github.com/fpang/brand-studio/internal/ledger"
	"github.com/fpang/brand-studio/internal/prompt"
	"github.com/fpang/brand-studio/internal/refassets"
	"github.com/fpang/brand-studio/internal/store"
)

// ImageRequest is the body of an image generation call. In edit mode
// ExistingImage is either a data URL or the key of an asset this team
// generated earlier.
type ImageRequest struct {
	Brief         brief.CreativeBrief `json:"brief"`
	IsEdit        bool                `json:"isEdit,omitempty"`
	ExistingImage string              `json:"existingImage,omitempty"`
}

// ImageResponse is returned after a successful generation.
type ImageResponse struct {
	ImageURL         string `json:"imageUrl"`
	AssetKey         string `json:"assetKey"`
	AttemptsUsed     int    `json:"attemptsUsed"`
	RemainingBalance int64  `json:"remainingBalance"`
}

// GenerateImage compiles the brief into a prompt, generates an image and
// charges one image credit.
func (s *Service) GenerateImage(ctx context.Context, p *store.Principal, req ImageRequest) (resp *ImageResponse, err error) {
	start := time.Now()
	attempts := 0
	charged := false
	defer func() {
		record(store.ActionImageGeneration, p, start, attempts, charged, err)
	}()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	nb, err := brief.Validate(req.Brief)
	if err != nil {
		return nil, validationError(err)
	}
	if req.IsEdit && strings.TrimSpace(req.ExistingImage) == "" {
		return nil, newError(KindValidation, "existingImage: is required in edit mode", nil)
	}
	if err := s.resolveEntities(ctx, p.TeamID, nb); err != nil {
		return nil, err
	}

	decision, err := s.admit(ctx, p, store.ActionImageGeneration)
	if err != nil {
		return nil, err
	}

	admitted := refassets.Admit(nb.ReferenceAssets, s.referenceCap)
	compiled := prompt.Compile(nb, admitted.Counts())

	var base *refassets.Asset
	if req.IsEdit {
		if base, err = s.loadBase(ctx, p.TeamID, strings.TrimSpace(req.ExistingImage)); err != nil {
			return nil, err
		}
	}

	result, err := s.invoker.Invoke(ctx, generation.Request{
		Prompt:     compiled,
		References: admitted.Assets,
		Base:       base,
	})
	if err != nil {
		var ge *generation.Error
		if errors.As(err, &ge) {
			attempts = ge.Attempts
		}
		return nil, generationError(err)
	}
	attempts = len(result.Attempts)

	stored, err := s.assets.Put(ctx, p.TeamID, result.Image.MIMEType, result.Image.Data)
	if err != nil {
		return nil, newError(KindInternal, "could not store the generated image", err)
	}

	settlement := s.settle(ctx, ledger.SettleRequest{
		TeamID:      p.TeamID,
		UserID:      p.UserID,
		Action:      store.ActionImageGeneration,
		Description: "image: " + truncate(nb.Description, 80),
		Metadata: map[string]string{
			"assetKey": stored.Key,
			"model":    result.Model,
			"attempts": strconv.Itoa(attempts),
			"edit":     strconv.FormatBool(req.IsEdit),
		},
	}, decision)
	charged = settlement.Charged

	log.Info().
		Str("teamId", p.TeamID).
		Str("assetKey", stored.Key).
		Int("attempts", attempts).
		Bool("charged", charged).
		Dur("duration", time.Since(start)).
		Msg("Image generated")

	return &ImageResponse{
		ImageURL:         stored.URL,
		AssetKey:         stored.Key,
		AttemptsUsed:     attempts,
		RemainingBalance: settlement.Balance,
	}, nil
}

// resolveEntities loads the referenced persona and theme into the brief.
func (s *Service) resolveEntities(ctx context.Context, teamID string, nb *brief.NormalizedBrief) error {
	if nb.PersonaID != "" {
		persona, err := s.store.GetPersona(ctx, teamID, nb.PersonaID)
		if err != nil {
			return newError(KindInternal, "could not load persona", err)
		}
		if persona == nil {
			return newError(KindNotFound, "persona not found", nil)
		}
		nb.Persona = &brief.EntityContext{Name: persona.Name, Description: persona.Description}
	}
	if nb.ThemeID != "" {
		theme, err := s.store.GetTheme(ctx, teamID, nb.ThemeID)
		if err != nil {
			return newError(KindInternal, "could not load theme", err)
		}
		if theme == nil {
			return newError(KindNotFound, "theme not found", nil)
		}
		nb.Theme = &brief.EntityContext{Name: theme.Name, Description: theme.Description}
	}
	return nil
}

// loadBase returns the image to edit from a data URL or a stored asset key.
func (s *Service) loadBase(ctx context.Context, teamID, ref string) (*refassets.Asset, error) {
	if strings.HasPrefix(ref, "data:") {
		a, err := refassets.Decode(ref)
		if err != nil {
			return nil, newError(KindAsset, "existingImage is not a valid image", err)
		}
		return a, nil
	}

	obj, err := s.assets.Get(ctx, teamID, ref)
	if errors.Is(err, assetstore.ErrNotFound) {
		return nil, newError(KindNotFound, "existingImage not found", err)
	}
	if err != nil {
		return nil, newError(KindInternal, "could not load existingImage", err)
	}
	a, err := refassets.Verify(obj.MIMEType, obj.Data)
	if err != nil {
		return nil, newError(KindAsset, "existingImage is not a valid image", err)
	}
	return a, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
