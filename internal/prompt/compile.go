// Package prompt compiles a validated creative brief into the single text
// instruction sent to the image model.
//
// Compile is pure: the same brief and asset counts always produce the same
// string. All user text passes through Sanitize before interpolation.
package prompt

import (
	"strings"

	"github.com/fpang/brand-studio/internal/assets"
	"github.com/fpang/brand-studio/internal/brief"
)

// clauseSeparator joins compiled clauses.
const clauseSeparator = ". "

// AssetCounts are the admitted reference-asset counts the preamble describes.
type AssetCounts struct {
	Brand int
	User  int
}

// Total returns the number of admitted assets.
func (c AssetCounts) Total() int {
	return c.Brand + c.User
}

// Compile builds the prompt. Clause order is fixed and the negative
// constraint is always last; empty clauses are skipped.
func Compile(nb *brief.NormalizedBrief, counts AssetCounts) string {
	brand := trimClause(Sanitize(nb.BrandName))
	var theme, themeDesc string
	if nb.Theme != nil {
		theme = trimClause(Sanitize(nb.Theme.Name))
		themeDesc = trimClause(Sanitize(nb.Theme.Description))
	}

	clauses := []string{
		preambleClause(counts),
		framingClause(brand, theme, themeDesc),
		descriptionClause(nb.Description),
		toneClause(nb.Tones),
		assets.TechnicalQualityClause,
		platformClause(nb.Platform),
		personaClause(nb.Persona),
		prefixed("The marketing objective is to ", nb.Objective),
		prefixed("Additional context: ", nb.ExtraInfo),
		colorPaletteClause(nb.ColorPalette),
		lightingClause(nb.Lighting),
		compositionClause(nb.Composition),
		cameraAngleClause(nb.CameraAngle),
		moodClause(nb.Mood),
		detailClause(nb.DetailLevel),
		assets.RenderClosing(assets.ClosingData{Brand: brand, Theme: theme}),
		prefixed("The image must avoid ", nb.NegativePrompt),
	}

	kept := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = trimClause(c); c != "" {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, clauseSeparator)
}

func preambleClause(counts AssetCounts) string {
	if counts.Total() <= 0 {
		return ""
	}
	return assets.RenderReferencePreamble(assets.PreambleData{Total: counts.Total(), Brand: counts.Brand})
}

func framingClause(brand, theme, themeDesc string) string {
	var b strings.Builder
	switch {
	case brand != "" && theme != "":
		b.WriteString("Create a social media visual for " + brand + " as part of the " + theme + " campaign")
	case brand != "":
		b.WriteString("Create a social media visual for " + brand)
	case theme != "":
		b.WriteString("Create a social media visual for the " + theme + " campaign")
	default:
		return ""
	}
	if theme != "" && themeDesc != "" {
		b.WriteString(", where the campaign direction is " + themeDesc)
	}
	return b.String()
}

func descriptionClause(desc string) string {
	d := trimClause(Sanitize(desc))
	if d == "" {
		return ""
	}
	return d + ", captured as a professional high-quality photograph with realistic textures and natural detail"
}

func toneClause(tones []brief.Tone) string {
	if len(tones) == 0 {
		return ""
	}
	phrases := make([]string, 0, len(tones))
	for _, t := range tones {
		phrases = append(phrases, tonePhrase(t))
	}
	return "Give the image " + SanitizeList(phrases)
}

func personaClause(p *brief.EntityContext) string {
	if p == nil {
		return ""
	}
	name := trimClause(Sanitize(p.Name))
	if name == "" {
		return ""
	}
	clause := "Tailor the visual to appeal to the " + name + " audience"
	if desc := trimClause(Sanitize(p.Description)); desc != "" {
		clause += ": " + desc
	}
	return clause
}

// prefixed sanitizes value and prepends prefix, or returns "" when value is empty.
func prefixed(prefix, value string) string {
	v := trimClause(Sanitize(value))
	if v == "" {
		return ""
	}
	return prefix + v
}
