package prompt

import "github.com/fpang/brand-studio/internal/brief"

// The renderers below switch over closed vocabularies parsed by
// brief.Validate. Adding a value to a vocabulary means adding a case here;
// the default branches only guard values that cannot pass validation.

func tonePhrase(t brief.Tone) string {
	switch t {
	case brief.ToneProfessional:
		return "a clean, polished and professional look"
	case brief.ToneCasual:
		return "a relaxed, candid and approachable feel"
	case brief.TonePlayful:
		return "a playful, lighthearted energy with bright accents"
	case brief.ToneLuxurious:
		return "a luxurious, premium finish with rich materials"
	case brief.ToneMinimalist:
		return "a minimalist aesthetic with generous negative space"
	case brief.ToneBold:
		return "a bold, high-contrast and attention-grabbing style"
	case brief.ToneWarm:
		return "a warm, inviting and comforting atmosphere"
	case brief.ToneEnergetic:
		return "a dynamic, energetic sense of movement"
	case brief.ToneElegant:
		return "an elegant, refined and graceful presentation"
	case brief.ToneFriendly:
		return "a friendly, welcoming and human touch"
	case brief.ToneInspirational:
		return "an uplifting, aspirational and inspiring feel"
	case brief.ToneAuthoritative:
		return "a confident, authoritative and trustworthy presence"
	default:
		return "a " + Sanitize(string(t)) + " aesthetic"
	}
}

func platformClause(p brief.Platform) string {
	switch p {
	case brief.PlatformNone:
		return ""
	case brief.PlatformInstagram:
		return "Optimize for Instagram with a square or 4:5 portrait framing and scroll-stopping visual impact"
	case brief.PlatformFacebook:
		return "Optimize for the Facebook feed with a clear focal point that reads well at small sizes"
	case brief.PlatformLinkedIn:
		return "Optimize for LinkedIn with a credible, business-appropriate presentation"
	case brief.PlatformTwitter:
		return "Optimize for X with a 16:9 landscape framing and a subject that stands out in a fast-moving timeline"
	case brief.PlatformTikTok:
		return "Optimize for TikTok with a vertical 9:16 framing and a trend-aware, energetic look"
	case brief.PlatformPinterest:
		return "Optimize for Pinterest with a tall 2:3 framing and an aspirational, save-worthy look"
	case brief.PlatformYouTube:
		return "Optimize for a YouTube thumbnail with a 16:9 framing, strong contrast and an expressive focal subject"
	default:
		return ""
	}
}

func colorPaletteClause(c brief.ColorPalette) string {
	switch c {
	case brief.ColorAuto:
		return ""
	case brief.ColorVibrant:
		return "Use a vibrant, saturated color palette"
	case brief.ColorPastel:
		return "Use a soft pastel color palette"
	case brief.ColorMonochrome:
		return "Use a monochrome color palette"
	case brief.ColorEarthTones:
		return "Use a natural earth-tone palette of browns, greens and warm neutrals"
	case brief.ColorWarm:
		return "Use a warm color palette of reds, oranges and golds"
	case brief.ColorCool:
		return "Use a cool color palette of blues, teals and silvers"
	case brief.ColorNeon:
		return "Use glowing neon accents against darker tones"
	case brief.ColorBrand:
		return "Keep the colors faithful to the brand palette shown in the brand assets"
	default:
		return ""
	}
}

func lightingClause(l brief.Lighting) string {
	switch l {
	case brief.LightingAuto:
		return ""
	case brief.LightingNatural:
		return "Light the scene with soft natural daylight"
	case brief.LightingStudio:
		return "Light the scene with controlled studio lighting and clean shadows"
	case brief.LightingGoldenHour:
		return "Light the scene with warm golden-hour sunlight"
	case brief.LightingDramatic:
		return "Light the scene with dramatic, high-contrast directional light"
	case brief.LightingSoft:
		return "Light the scene with soft, diffused light"
	case brief.LightingBacklit:
		return "Backlight the subject for a glowing rim of light"
	case brief.LightingNeon:
		return "Light the scene with colorful neon light sources"
	default:
		return ""
	}
}

func compositionClause(c brief.Composition) string {
	switch c {
	case brief.CompositionAuto:
		return ""
	case brief.CompositionRuleOfThirds:
		return "Compose the shot using the rule of thirds"
	case brief.CompositionCentered:
		return "Center the subject in the frame"
	case brief.CompositionSymmetrical:
		return "Use a balanced, symmetrical composition"
	case brief.CompositionLeadingLines:
		return "Use leading lines that draw the eye to the subject"
	case brief.CompositionFlatLay:
		return "Arrange the scene as a top-down flat lay"
	case brief.CompositionCloseUp:
		return "Frame the subject as a tight close-up"
	case brief.CompositionWideShot:
		return "Frame the scene as a wide establishing shot"
	default:
		return ""
	}
}

func cameraAngleClause(a brief.CameraAngle) string {
	switch a {
	case brief.AngleAuto:
		return ""
	case brief.AngleEyeLevel:
		return "Shoot from eye level"
	case brief.AngleHigh:
		return "Shoot from a high angle looking down on the subject"
	case brief.AngleLow:
		return "Shoot from a low angle looking up at the subject"
	case brief.AngleBirdsEye:
		return "Shoot from directly overhead for a birds-eye view"
	case brief.AngleDutch:
		return "Tilt the camera into a dutch angle"
	case brief.AngleOverTheShoulder:
		return "Shoot over the shoulder of a person in the scene"
	default:
		return ""
	}
}

func moodClause(m brief.Mood) string {
	switch m {
	case brief.MoodAuto:
		return ""
	case brief.MoodCheerful:
		return "The overall mood should feel cheerful and upbeat"
	case brief.MoodCalm:
		return "The overall mood should feel calm and relaxed"
	case brief.MoodMysterious:
		return "The overall mood should feel mysterious and intriguing"
	case brief.MoodRomantic:
		return "The overall mood should feel romantic and intimate"
	case brief.MoodEnergetic:
		return "The overall mood should feel energetic and exciting"
	case brief.MoodNostalgic:
		return "The overall mood should feel nostalgic and sentimental"
	case brief.MoodSerene:
		return "The overall mood should feel serene and peaceful"
	case brief.MoodDramatic:
		return "The overall mood should feel dramatic and intense"
	default:
		return ""
	}
}

// detailLadder maps detail levels 1-10 to verbosity instructions.
var detailLadder = [brief.MaxDetailLevel]string{
	"Keep the image extremely simple with a single subject and almost no detail",
	"Keep the image very simple with minimal detail",
	"Keep the image simple and uncluttered",
	"Keep detail slightly restrained",
	"Use a balanced level of detail",
	"Add a little extra texture and detail",
	"Add rich texture and fine detail",
	"Fill the scene with intricate detail",
	"Render highly intricate detail throughout the scene",
	"Render maximal, hyper-detailed textures in every part of the scene",
}

func detailClause(d brief.DetailLevel) string {
	if d == brief.DefaultDetailLevel || d < brief.MinDetailLevel || d > brief.MaxDetailLevel {
		return ""
	}
	return detailLadder[d-1]
}
