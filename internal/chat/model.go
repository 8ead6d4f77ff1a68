package chat

// Gemini Model IDs
//
// | Model Name                  | API Model ID                | Use Case                      |
// |-----------------------------|-----------------------------|-------------------------------|
// | Gemini 3 Flash (Preview)    | gemini-3-flash-preview      | Persona and theme drafting    |
// | Gemini 2.5 Flash            | gemini-2.5-flash            | Stable text fallback          |
// | Gemini 3 Pro Image          | gemini-3-pro-image-preview  | Image generation and edit     |
// | Gemini 2.5 Flash Image      | gemini-2.5-flash-image      | Cheaper image generation      |
const (
	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelGemini25FlashImage is the lower-cost image model.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"
)

// Defaults used when configuration does not name a model.
const (
	DefaultImageModel = ModelGemini3ProImage
	DefaultTextModel  = ModelGemini3FlashPreview
)
