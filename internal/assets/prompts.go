// Package assets provides embedded prompt fragments for the application.
//
// Prompt text is stored as files under prompts/ and embedded at compile time
// so copy changes never touch Go code. Callers are responsible for
// sanitizing any user text before it is passed into a template.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// TechnicalQualityClause is the fixed camera and image-quality clause added
// to every compiled image prompt.
//
//go:embed prompts/technical-quality.txt
var TechnicalQualityClause string

// --- Dynamic prompt templates ---

//go:embed prompts/reference-preamble.txt
var referencePreambleTemplate string

//go:embed prompts/closing.txt
var closingTemplate string

//go:embed prompts/persona-draft.txt
var personaDraftTemplate string

//go:embed prompts/theme-draft.txt
var themeDraftTemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	referencePreambleTmpl = template.Must(template.New("reference-preamble").Parse(referencePreambleTemplate))
	closingTmpl           = template.Must(template.New("closing").Parse(closingTemplate))
	personaDraftTmpl      = template.Must(template.New("persona-draft").Parse(personaDraftTemplate))
	themeDraftTmpl        = template.Must(template.New("theme-draft").Parse(themeDraftTemplate))
)

// PreambleData holds the admitted reference-asset counts.
type PreambleData struct {
	Total int
	Brand int
}

// ClosingData holds the optional brand and theme names for the closing clause.
type ClosingData struct {
	Brand string
	Theme string
}

// DraftData holds the seed fields for AI persona or theme drafting.
type DraftData struct {
	Name        string
	Description string
	Brand       string
}

// RenderReferencePreamble renders the clause that tells the model how to
// treat attached reference images.
func RenderReferencePreamble(data PreambleData) string {
	return renderTemplate(referencePreambleTmpl, data)
}

// RenderClosing renders the closing quality-reinforcement clause.
func RenderClosing(data ClosingData) string {
	return renderTemplate(closingTmpl, data)
}

// RenderPersonaDraftPrompt renders the persona drafting instruction.
func RenderPersonaDraftPrompt(data DraftData) string {
	return renderTemplate(personaDraftTmpl, data)
}

// RenderThemeDraftPrompt renders the theme drafting instruction.
func RenderThemeDraftPrompt(data DraftData) string {
	return renderTemplate(themeDraftTmpl, data)
}

// renderTemplate executes a pre-parsed template and trims surrounding whitespace.
func renderTemplate(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	// Template execution errors are not expected with these simple templates,
	// but we handle them gracefully by returning whatever was rendered.
	_ = tmpl.Execute(&buf, data)
	return strings.TrimSpace(buf.String())
}
