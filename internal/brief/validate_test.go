package brief

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_DescriptionRequired(t *testing.T) {
	for _, desc := range []string{"", "   ", "\n\t"} {
		_, err := Validate(CreativeBrief{Description: desc})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Validate(%q): expected ValidationError, got %v", desc, err)
		}
		if ve.Field != "description" {
			t.Errorf("expected field description, got %s", ve.Field)
		}
	}
}

func TestValidate_LengthLimits(t *testing.T) {
	long := strings.Repeat("a", MaxLongText+1)

	tests := []struct {
		name  string
		brief CreativeBrief
		field string
	}{
		{"description", CreativeBrief{Description: long}, "description"},
		{"objective", CreativeBrief{Description: "ok", Objective: long}, "objective"},
		{"extraInfo", CreativeBrief{Description: "ok", ExtraInfo: long}, "extraInfo"},
		{"negativePrompt", CreativeBrief{Description: "ok", NegativePrompt: long}, "negativePrompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.brief)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected ValidationError on %s, got %v", tt.field, err)
			}
		})
	}

	// Exactly at the limit is fine, and counted in runes.
	if _, err := Validate(CreativeBrief{Description: strings.Repeat("é", MaxLongText)}); err != nil {
		t.Errorf("unexpected error at limit: %v", err)
	}
}

func TestValidate_TrimsAndDefaults(t *testing.T) {
	nb, err := Validate(CreativeBrief{Description: "  A coffee cup on a wooden table  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nb.Description != "A coffee cup on a wooden table" {
		t.Errorf("description not trimmed: %q", nb.Description)
	}
	if nb.Platform != PlatformNone {
		t.Errorf("expected no platform, got %q", nb.Platform)
	}
	if nb.ColorPalette != ColorAuto || nb.Lighting != LightingAuto || nb.Composition != CompositionAuto ||
		nb.CameraAngle != AngleAuto || nb.Mood != MoodAuto {
		t.Errorf("advanced parameters should default to auto: %+v", nb)
	}
	if nb.DetailLevel != DefaultDetailLevel {
		t.Errorf("expected default detail level, got %d", nb.DetailLevel)
	}
}

func TestValidate_ParsesVocabularies(t *testing.T) {
	nb, err := Validate(CreativeBrief{
		Description:  "x",
		Platform:     "Instagram",
		ColorPalette: "Earth Tones",
		Lighting:     "golden_hour",
		Composition:  "rule-of-thirds",
		CameraAngle:  "LOW-ANGLE",
		Mood:         "serene",
		DetailLevel:  9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nb.Platform != PlatformInstagram {
		t.Errorf("platform: got %q", nb.Platform)
	}
	if nb.ColorPalette != ColorEarthTones {
		t.Errorf("colorPalette: got %q", nb.ColorPalette)
	}
	if nb.Lighting != LightingGoldenHour {
		t.Errorf("lighting: got %q", nb.Lighting)
	}
	if nb.CameraAngle != AngleLow {
		t.Errorf("cameraAngle: got %q", nb.CameraAngle)
	}
	if nb.DetailLevel != 9 {
		t.Errorf("detailLevel: got %d", nb.DetailLevel)
	}
}

func TestValidate_PlatformAlias(t *testing.T) {
	nb, err := Validate(CreativeBrief{Description: "x", Platform: "X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nb.Platform != PlatformTwitter {
		t.Errorf("expected twitter, got %q", nb.Platform)
	}
}

func TestValidate_RejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		field string
		brief CreativeBrief
	}{
		{"platform", CreativeBrief{Description: "x", Platform: "myspace"}},
		{"lighting", CreativeBrief{Description: "x", Lighting: "golden-hr"}},
		{"colorPalette", CreativeBrief{Description: "x", ColorPalette: "rainbow"}},
		{"composition", CreativeBrief{Description: "x", Composition: "diagonal"}},
		{"cameraAngle", CreativeBrief{Description: "x", CameraAngle: "worms-eye"}},
		{"mood", CreativeBrief{Description: "x", Mood: "grumpy"}},
		{"detailLevel", CreativeBrief{Description: "x", DetailLevel: 11}},
		{"detailLevel", CreativeBrief{Description: "x", DetailLevel: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := Validate(tt.brief)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestValidate_Tones(t *testing.T) {
	nb, err := Validate(CreativeBrief{
		Description: "x",
		Tones:       []string{"Playful", " ", "playful", "retro futurism", "bold"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Tone{TonePlayful, Tone("retro futurism"), ToneBold}
	if len(nb.Tones) != len(want) {
		t.Fatalf("expected %d tones, got %v", len(want), nb.Tones)
	}
	for i := range want {
		if nb.Tones[i] != want[i] {
			t.Errorf("tone %d: expected %q, got %q", i, want[i], nb.Tones[i])
		}
	}
	if nb.Tones[1].Known() {
		t.Error("custom tone should not be known")
	}
}

func TestValidate_ReferenceAssets(t *testing.T) {
	asset := ReferenceAsset{Data: "data:image/png;base64,AAAA", Source: SourceUser}

	tooMany := make([]ReferenceAsset, MaxReferenceAssets+1)
	for i := range tooMany {
		tooMany[i] = asset
	}
	if _, err := Validate(CreativeBrief{Description: "x", ReferenceAssets: tooMany}); err == nil {
		t.Error("expected error for more than the maximum reference assets")
	}

	atLimit := tooMany[:MaxReferenceAssets]
	nb, err := Validate(CreativeBrief{Description: "x", ReferenceAssets: atLimit})
	if err != nil {
		t.Fatalf("unexpected error at limit: %v", err)
	}
	if len(nb.ReferenceAssets) != MaxReferenceAssets {
		t.Errorf("validation must not truncate, got %d", len(nb.ReferenceAssets))
	}

	bad := []ReferenceAsset{{Data: "data:image/png;base64,AAAA", Source: "partner"}}
	if _, err := Validate(CreativeBrief{Description: "x", ReferenceAssets: bad}); err == nil {
		t.Error("expected error for unknown asset source")
	}
}

func TestValidatePersona(t *testing.T) {
	if _, err := ValidatePersona(PersonaInput{Name: "  "}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := ValidatePersona(PersonaInput{Name: strings.Repeat("n", MaxNameLength+1)}); err == nil {
		t.Error("expected error for long name")
	}

	p, err := ValidatePersona(PersonaInput{
		Name:      " Busy Parent ",
		Interests: []string{"cooking", "", " travel "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Busy Parent" {
		t.Errorf("name not trimmed: %q", p.Name)
	}
	if len(p.Interests) != 2 || p.Interests[1] != "travel" {
		t.Errorf("unexpected interests: %v", p.Interests)
	}
}

func TestValidateTheme(t *testing.T) {
	keywords := make([]string, MaxListItems+1)
	for i := range keywords {
		keywords[i] = "k"
	}
	if _, err := ValidateTheme(ThemeInput{Name: "Summer", Keywords: keywords}); err == nil {
		t.Error("expected error for too many keywords")
	}
	th, err := ValidateTheme(ThemeInput{Name: "Summer Launch", Description: " bright "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.Description != "bright" {
		t.Errorf("description not trimmed: %q", th.Description)
	}
}
