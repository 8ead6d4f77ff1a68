// Package brief defines the creative brief submitted for an image generation
// request and validates it into a NormalizedBrief that the prompt compiler
// can consume without further checks.
//
// Closed vocabularies (platform, color palette, lighting, composition,
// camera angle, mood) are parsed here. A misspelled key is rejected as a
// ValidationError instead of silently dropping out of the prompt.
package brief

// Limits applied by Validate.
const (
	MaxLongText        = 2000
	MaxShortText       = 200
	MaxNameLength      = 100
	MaxReferenceAssets = 10
	MaxTones           = 10
	MaxListItems       = 20
)

// AssetSource identifies where a reference asset came from. Brand assets are
// always ordered ahead of user uploads.
type AssetSource string

const (
	SourceBrand AssetSource = "brand"
	SourceUser  AssetSource = "user"
)

// ReferenceAsset is an image attached to a brief. Data is a base64 data URL
// (data:image/png;base64,...).
type ReferenceAsset struct {
	Data   string      `json:"data"`
	Source AssetSource `json:"source"`
}

// CreativeBrief is the structured request body for image generation.
type CreativeBrief struct {
	Description     string           `json:"description"`
	Tones           []string         `json:"tones,omitempty"`
	Platform        string           `json:"platform,omitempty"`
	BrandName       string           `json:"brandName,omitempty"`
	ThemeID         string           `json:"themeId,omitempty"`
	PersonaID       string           `json:"personaId,omitempty"`
	Objective       string           `json:"objective,omitempty"`
	ExtraInfo       string           `json:"extraInfo,omitempty"`
	ColorPalette    string           `json:"colorPalette,omitempty"`
	Lighting        string           `json:"lighting,omitempty"`
	Composition     string           `json:"composition,omitempty"`
	CameraAngle     string           `json:"cameraAngle,omitempty"`
	Mood            string           `json:"mood,omitempty"`
	DetailLevel     int              `json:"detailLevel,omitempty"`
	NegativePrompt  string           `json:"negativePrompt,omitempty"`
	ReferenceAssets []ReferenceAsset `json:"referenceAssets,omitempty"`
}

// EntityContext is the resolved name and description of a persona or theme
// referenced by a brief.
type EntityContext struct {
	Name        string
	Description string
}

// NormalizedBrief is a validated, trimmed brief with parsed vocabularies.
// Persona and Theme are nil until the orchestrator resolves PersonaID and
// ThemeID against the store.
type NormalizedBrief struct {
	Description     string
	Tones           []Tone
	Platform        Platform
	BrandName       string
	ThemeID         string
	PersonaID       string
	Theme           *EntityContext
	Persona         *EntityContext
	Objective       string
	ExtraInfo       string
	ColorPalette    ColorPalette
	Lighting        Lighting
	Composition     Composition
	CameraAngle     CameraAngle
	Mood            Mood
	DetailLevel     DetailLevel
	NegativePrompt  string
	ReferenceAssets []ReferenceAsset
}

// PersonaInput is the request body for persona creation. When Draft is set,
// empty descriptive fields are filled in by the model before the persona is
// saved.
type PersonaInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	AgeRange    string   `json:"ageRange,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	PainPoints  []string `json:"painPoints,omitempty"`
	Draft       bool     `json:"draft,omitempty"`
}

// ThemeInput is the request body for theme creation.
type ThemeInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Draft       bool     `json:"draft,omitempty"`
}
