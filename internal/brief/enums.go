package brief

import (
	"fmt"
	"strings"
)

// Tone is a brand voice keyword. Known tones have dedicated prompt language;
// anything else is kept as a custom tone and rendered generically.
type Tone string

const (
	ToneProfessional  Tone = "professional"
	ToneCasual        Tone = "casual"
	TonePlayful       Tone = "playful"
	ToneLuxurious     Tone = "luxurious"
	ToneMinimalist    Tone = "minimalist"
	ToneBold          Tone = "bold"
	ToneWarm          Tone = "warm"
	ToneEnergetic     Tone = "energetic"
	ToneElegant       Tone = "elegant"
	ToneFriendly      Tone = "friendly"
	ToneInspirational Tone = "inspirational"
	ToneAuthoritative Tone = "authoritative"
)

// KnownTones lists every tone with dedicated prompt language.
var KnownTones = []Tone{
	ToneProfessional, ToneCasual, TonePlayful, ToneLuxurious, ToneMinimalist, ToneBold,
	ToneWarm, ToneEnergetic, ToneElegant, ToneFriendly, ToneInspirational, ToneAuthoritative,
}

// Known reports whether t is one of KnownTones.
func (t Tone) Known() bool {
	for _, k := range KnownTones {
		if t == k {
			return true
		}
	}
	return false
}

// Platform is the social network the image is destined for.
type Platform string

const (
	PlatformNone      Platform = ""
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
	PlatformYouTube   Platform = "youtube"
)

// Platforms lists the accepted platform keys.
var Platforms = []Platform{
	PlatformInstagram, PlatformFacebook, PlatformLinkedIn, PlatformTwitter,
	PlatformTikTok, PlatformPinterest, PlatformYouTube,
}

// ColorPalette selects a color treatment. ColorAuto leaves it to the model.
type ColorPalette string

const (
	ColorAuto       ColorPalette = "auto"
	ColorVibrant    ColorPalette = "vibrant"
	ColorPastel     ColorPalette = "pastel"
	ColorMonochrome ColorPalette = "monochrome"
	ColorEarthTones ColorPalette = "earth-tones"
	ColorWarm       ColorPalette = "warm"
	ColorCool       ColorPalette = "cool"
	ColorNeon       ColorPalette = "neon"
	ColorBrand      ColorPalette = "brand"
)

var ColorPalettes = []ColorPalette{
	ColorAuto, ColorVibrant, ColorPastel, ColorMonochrome, ColorEarthTones,
	ColorWarm, ColorCool, ColorNeon, ColorBrand,
}

// Lighting selects the lighting setup.
type Lighting string

const (
	LightingAuto       Lighting = "auto"
	LightingNatural    Lighting = "natural"
	LightingStudio     Lighting = "studio"
	LightingGoldenHour Lighting = "golden-hour"
	LightingDramatic   Lighting = "dramatic"
	LightingSoft       Lighting = "soft"
	LightingBacklit    Lighting = "backlit"
	LightingNeon       Lighting = "neon"
)

var Lightings = []Lighting{
	LightingAuto, LightingNatural, LightingStudio, LightingGoldenHour,
	LightingDramatic, LightingSoft, LightingBacklit, LightingNeon,
}

// Composition selects the framing rule.
type Composition string

const (
	CompositionAuto         Composition = "auto"
	CompositionRuleOfThirds Composition = "rule-of-thirds"
	CompositionCentered     Composition = "centered"
	CompositionSymmetrical  Composition = "symmetrical"
	CompositionLeadingLines Composition = "leading-lines"
	CompositionFlatLay      Composition = "flat-lay"
	CompositionCloseUp      Composition = "close-up"
	CompositionWideShot     Composition = "wide-shot"
)

var Compositions = []Composition{
	CompositionAuto, CompositionRuleOfThirds, CompositionCentered, CompositionSymmetrical,
	CompositionLeadingLines, CompositionFlatLay, CompositionCloseUp, CompositionWideShot,
}

// CameraAngle selects the camera position.
type CameraAngle string

const (
	AngleAuto            CameraAngle = "auto"
	AngleEyeLevel        CameraAngle = "eye-level"
	AngleHigh            CameraAngle = "high-angle"
	AngleLow             CameraAngle = "low-angle"
	AngleBirdsEye        CameraAngle = "birds-eye"
	AngleDutch           CameraAngle = "dutch-angle"
	AngleOverTheShoulder CameraAngle = "over-the-shoulder"
)

var CameraAngles = []CameraAngle{
	AngleAuto, AngleEyeLevel, AngleHigh, AngleLow, AngleBirdsEye, AngleDutch, AngleOverTheShoulder,
}

// Mood selects the emotional atmosphere.
type Mood string

const (
	MoodAuto       Mood = "auto"
	MoodCheerful   Mood = "cheerful"
	MoodCalm       Mood = "calm"
	MoodMysterious Mood = "mysterious"
	MoodRomantic   Mood = "romantic"
	MoodEnergetic  Mood = "energetic"
	MoodNostalgic  Mood = "nostalgic"
	MoodSerene     Mood = "serene"
	MoodDramatic   Mood = "dramatic"
)

var Moods = []Mood{
	MoodAuto, MoodCheerful, MoodCalm, MoodMysterious, MoodRomantic,
	MoodEnergetic, MoodNostalgic, MoodSerene, MoodDramatic,
}

// DetailLevel is the 1-10 verbosity dial. Zero means unset and normalizes
// to DefaultDetailLevel, which adds nothing to the prompt.
type DetailLevel int

const (
	MinDetailLevel     DetailLevel = 1
	MaxDetailLevel     DetailLevel = 10
	DefaultDetailLevel DetailLevel = 5
)

// normalizeKey lowercases and hyphenates a user-supplied vocabulary key so
// "Golden Hour", "golden_hour" and "golden-hour" all parse the same way.
func normalizeKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	return strings.Join(strings.Fields(s), "-")
}

// parseEnum matches raw against a closed vocabulary. An empty value returns
// fallback.
func parseEnum[T ~string](field, raw string, allowed []T, fallback T) (T, error) {
	key := normalizeKey(raw)
	if key == "" {
		return fallback, nil
	}
	for _, v := range allowed {
		if string(v) == key {
			return v, nil
		}
	}
	names := make([]string, len(allowed))
	for i, v := range allowed {
		names[i] = string(v)
	}
	return fallback, &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("unknown value %q (expected one of: %s)", raw, strings.Join(names, ", ")),
	}
}

// ParsePlatform parses a platform key. "x" is accepted as an alias for twitter.
func ParsePlatform(raw string) (Platform, error) {
	if normalizeKey(raw) == "x" {
		return PlatformTwitter, nil
	}
	return parseEnum("platform", raw, Platforms, PlatformNone)
}

func ParseColorPalette(raw string) (ColorPalette, error) {
	return parseEnum("colorPalette", raw, ColorPalettes, ColorAuto)
}

func ParseLighting(raw string) (Lighting, error) {
	return parseEnum("lighting", raw, Lightings, LightingAuto)
}

func ParseComposition(raw string) (Composition, error) {
	return parseEnum("composition", raw, Compositions, CompositionAuto)
}

func ParseCameraAngle(raw string) (CameraAngle, error) {
	return parseEnum("cameraAngle", raw, CameraAngles, AngleAuto)
}

func ParseMood(raw string) (Mood, error) {
	return parseEnum("mood", raw, Moods, MoodAuto)
}
