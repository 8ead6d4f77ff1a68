package brief

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError reports a brief field that failed validation. The message
// is safe to return to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validate checks a brief and returns its normalized form. It has no side
// effects; reference asset contents are checked later by admission.
func Validate(b CreativeBrief) (*NormalizedBrief, error) {
	desc := strings.TrimSpace(b.Description)
	if desc == "" {
		return nil, &ValidationError{Field: "description", Message: "is required"}
	}
	if err := checkLength("description", desc, MaxLongText); err != nil {
		return nil, err
	}

	nb := &NormalizedBrief{
		Description:    desc,
		BrandName:      strings.TrimSpace(b.BrandName),
		ThemeID:        strings.TrimSpace(b.ThemeID),
		PersonaID:      strings.TrimSpace(b.PersonaID),
		Objective:      strings.TrimSpace(b.Objective),
		ExtraInfo:      strings.TrimSpace(b.ExtraInfo),
		NegativePrompt: strings.TrimSpace(b.NegativePrompt),
	}

	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"brandName", nb.BrandName, MaxShortText},
		{"objective", nb.Objective, MaxLongText},
		{"extraInfo", nb.ExtraInfo, MaxLongText},
		{"negativePrompt", nb.NegativePrompt, MaxLongText},
	} {
		if err := checkLength(f.name, f.value, f.max); err != nil {
			return nil, err
		}
	}

	tones, err := parseTones(b.Tones)
	if err != nil {
		return nil, err
	}
	nb.Tones = tones

	if nb.Platform, err = ParsePlatform(b.Platform); err != nil {
		return nil, err
	}
	if nb.ColorPalette, err = ParseColorPalette(b.ColorPalette); err != nil {
		return nil, err
	}
	if nb.Lighting, err = ParseLighting(b.Lighting); err != nil {
		return nil, err
	}
	if nb.Composition, err = ParseComposition(b.Composition); err != nil {
		return nil, err
	}
	if nb.CameraAngle, err = ParseCameraAngle(b.CameraAngle); err != nil {
		return nil, err
	}
	if nb.Mood, err = ParseMood(b.Mood); err != nil {
		return nil, err
	}

	switch {
	case b.DetailLevel == 0:
		nb.DetailLevel = DefaultDetailLevel
	case b.DetailLevel < int(MinDetailLevel) || b.DetailLevel > int(MaxDetailLevel):
		return nil, &ValidationError{
			Field:   "detailLevel",
			Message: fmt.Sprintf("must be between %d and %d", MinDetailLevel, MaxDetailLevel),
		}
	default:
		nb.DetailLevel = DetailLevel(b.DetailLevel)
	}

	if len(b.ReferenceAssets) > MaxReferenceAssets {
		return nil, &ValidationError{
			Field:   "referenceAssets",
			Message: fmt.Sprintf("at most %d reference images are allowed, got %d", MaxReferenceAssets, len(b.ReferenceAssets)),
		}
	}
	for i, a := range b.ReferenceAssets {
		if strings.TrimSpace(a.Data) == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("referenceAssets[%d].data", i), Message: "is required"}
		}
		if a.Source != SourceBrand && a.Source != SourceUser {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("referenceAssets[%d].source", i),
				Message: fmt.Sprintf("must be %q or %q", SourceBrand, SourceUser),
			}
		}
	}
	nb.ReferenceAssets = append([]ReferenceAsset(nil), b.ReferenceAssets...)

	return nb, nil
}

// parseTones trims, dedupes and parses tone keywords. Unknown tones are kept
// verbatim as custom tones.
func parseTones(raw []string) ([]Tone, error) {
	if len(raw) > MaxTones {
		return nil, &ValidationError{Field: "tones", Message: fmt.Sprintf("at most %d tones are allowed", MaxTones)}
	}
	var tones []Tone
	seen := make(map[string]bool)
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if err := checkLength("tones", r, MaxNameLength); err != nil {
			return nil, err
		}
		key := normalizeKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		if t := Tone(key); t.Known() {
			tones = append(tones, t)
		} else {
			tones = append(tones, Tone(r))
		}
	}
	return tones, nil
}

// ValidatePersona checks a persona creation request and returns a trimmed copy.
func ValidatePersona(in PersonaInput) (*PersonaInput, error) {
	out := PersonaInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		AgeRange:    strings.TrimSpace(in.AgeRange),
		Draft:       in.Draft,
	}
	if err := checkName(out.Name); err != nil {
		return nil, err
	}
	if err := checkLength("description", out.Description, MaxLongText); err != nil {
		return nil, err
	}
	if err := checkLength("ageRange", out.AgeRange, MaxNameLength); err != nil {
		return nil, err
	}
	var err error
	if out.Interests, err = cleanList("interests", in.Interests); err != nil {
		return nil, err
	}
	if out.PainPoints, err = cleanList("painPoints", in.PainPoints); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateTheme checks a theme creation request and returns a trimmed copy.
func ValidateTheme(in ThemeInput) (*ThemeInput, error) {
	out := ThemeInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Draft:       in.Draft,
	}
	if err := checkName(out.Name); err != nil {
		return nil, err
	}
	if err := checkLength("description", out.Description, MaxLongText); err != nil {
		return nil, err
	}
	var err error
	if out.Keywords, err = cleanList("keywords", in.Keywords); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return checkLength("name", name, MaxNameLength)
}

func checkLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters, got %d", max, n)}
	}
	return nil
}

func cleanList(field string, items []string) ([]string, error) {
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if err := checkLength(field, it, MaxNameLength); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if len(out) > MaxListItems {
		return nil, &ValidationError{Field: field, Message: fmt.Sprintf("at most %d items are allowed", MaxListItems)}
	}
	return out, nil
}
