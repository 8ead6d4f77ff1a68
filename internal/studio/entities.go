package studio

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/brief"
	"github.com/fpang/brand-studio/internal/chat"
	"github.com/fpang/brand-studio/internal/ledger"
	"github.com/fpang/brand-studio/internal/store"
)

// EntityResponse is returned after a persona or theme is created.
type EntityResponse struct {
	EntityID          string `json:"entityId"`
	RemainingBalance  int64  `json:"remainingBalance"`
	FreeUsesRemaining int    `json:"freeUsesRemaining"`
	Charged           bool   `json:"charged"`
}

// CreatePersona stores a persona, optionally letting the model fill in the
// fields the caller left empty.
func (s *Service) CreatePersona(ctx context.Context, p *store.Principal, in brief.PersonaInput) (resp *EntityResponse, err error) {
	start := time.Now()
	attempts := 0
	charged := false
	defer func() {
		record(store.ActionPersonaCreation, p, start, attempts, charged, err)
	}()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	valid, err := brief.ValidatePersona(in)
	if err != nil {
		return nil, validationError(err)
	}
	decision, err := s.admit(ctx, p, store.ActionPersonaCreation)
	if err != nil {
		return nil, err
	}

	if valid.Draft {
		var d *chat.PersonaDraft
		if attempts, err = s.draft(ctx, func(ctx context.Context) error {
			var derr error
			d, derr = chat.DraftPersona(ctx, s.text, s.textModel, chat.DraftSeed{Name: valid.Name, Description: valid.Description})
			return derr
		}); err != nil {
			return nil, err
		}
		mergePersonaDraft(valid, d)
	}

	persona := &store.Persona{
		ID:          uuid.NewString(),
		TeamID:      p.TeamID,
		CreatedBy:   p.UserID,
		Name:        valid.Name,
		Description: valid.Description,
		AgeRange:    valid.AgeRange,
		Interests:   valid.Interests,
		PainPoints:  valid.PainPoints,
	}
	if err := s.store.PutPersona(ctx, persona); err != nil {
		return nil, newError(KindInternal, "could not save persona", err)
	}

	settlement := s.settle(ctx, ledger.SettleRequest{
		TeamID:      p.TeamID,
		UserID:      p.UserID,
		Action:      store.ActionPersonaCreation,
		Description: "persona: " + persona.Name,
		Metadata:    map[string]string{"personaId": persona.ID},
	}, decision)
	charged = settlement.Charged

	log.Info().
		Str("teamId", p.TeamID).
		Str("personaId", persona.ID).
		Bool("drafted", valid.Draft).
		Bool("charged", charged).
		Msg("Persona created")

	return &EntityResponse{
		EntityID:          persona.ID,
		RemainingBalance:  settlement.Balance,
		FreeUsesRemaining: settlement.FreeRemaining,
		Charged:           charged,
	}, nil
}

// CreateTheme stores a campaign theme, optionally drafted by the model.
func (s *Service) CreateTheme(ctx context.Context, p *store.Principal, in brief.ThemeInput) (resp *EntityResponse, err error) {
	start := time.Now()
	attempts := 0
	charged := false
	defer func() {
		record(store.ActionThemeCreation, p, start, attempts, charged, err)
	}()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	valid, err := brief.ValidateTheme(in)
	if err != nil {
		return nil, validationError(err)
	}
	decision, err := s.admit(ctx, p, store.ActionThemeCreation)
	if err != nil {
		return nil, err
	}

	if valid.Draft {
		var d *chat.ThemeDraft
		if attempts, err = s.draft(ctx, func(ctx context.Context) error {
			var derr error
			d, derr = chat.DraftTheme(ctx, s.text, s.textModel, chat.DraftSeed{Name: valid.Name, Description: valid.Description})
			return derr
		}); err != nil {
			return nil, err
		}
		mergeThemeDraft(valid, d)
	}

	theme := &store.Theme{
		ID:          uuid.NewString(),
		TeamID:      p.TeamID,
		CreatedBy:   p.UserID,
		Name:        valid.Name,
		Description: valid.Description,
		Keywords:    valid.Keywords,
	}
	if err := s.store.PutTheme(ctx, theme); err != nil {
		return nil, newError(KindInternal, "could not save theme", err)
	}

	settlement := s.settle(ctx, ledger.SettleRequest{
		TeamID:      p.TeamID,
		UserID:      p.UserID,
		Action:      store.ActionThemeCreation,
		Description: "theme: " + theme.Name,
		Metadata:    map[string]string{"themeId": theme.ID},
	}, decision)
	charged = settlement.Charged

	log.Info().
		Str("teamId", p.TeamID).
		Str("themeId", theme.ID).
		Bool("drafted", valid.Draft).
		Bool("charged", charged).
		Msg("Theme created")

	return &EntityResponse{
		EntityID:          theme.ID,
		RemainingBalance:  settlement.Balance,
		FreeUsesRemaining: settlement.FreeRemaining,
		Charged:           charged,
	}, nil
}

// draft runs a drafting call under the retry policy and returns the number
// of attempts made.
func (s *Service) draft(ctx context.Context, call func(ctx context.Context) error) (int, error) {
	if s.text == nil {
		return 0, newError(KindInternal, "drafting is not available", nil)
	}
	attempts, err := s.draftPolicy.Run(ctx, func(ctx context.Context, attempt int) error {
		return call(ctx)
	})
	if err != nil {
		return len(attempts), generationError(err)
	}
	return len(attempts), nil
}

// mergePersonaDraft fills empty fields from the draft. Model output is
// clipped to the same limits user input is held to.
func mergePersonaDraft(in *brief.PersonaInput, d *chat.PersonaDraft) {
	if d == nil {
		return
	}
	if in.Description == "" {
		in.Description = clip(d.Description, brief.MaxLongText)
	}
	if in.AgeRange == "" {
		in.AgeRange = clip(d.AgeRange, brief.MaxNameLength)
	}
	if len(in.Interests) == 0 {
		in.Interests = clipList(d.Interests)
	}
	if len(in.PainPoints) == 0 {
		in.PainPoints = clipList(d.PainPoints)
	}
}

func mergeThemeDraft(in *brief.ThemeInput, d *chat.ThemeDraft) {
	if d == nil {
		return
	}
	if in.Description == "" {
		in.Description = clip(d.Description, brief.MaxLongText)
	}
	if len(in.Keywords) == 0 {
		in.Keywords = clipList(d.Keywords)
	}
}

func clip(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

func clipList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = clip(it, brief.MaxNameLength); it != "" {
			out = append(out, it)
		}
		if len(out) == brief.MaxListItems {
			break
		}
	}
	return out
}
