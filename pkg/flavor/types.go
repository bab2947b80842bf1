package flavor

import "strings"

// Emotion tags a bark line with the delivery the client should animate.
type Emotion string

const (
	EmotionExcited   Emotion = "excited"
	EmotionScared    Emotion = "scared"
	EmotionCocky     Emotion = "cocky"
	EmotionDisgusted Emotion = "disgusted"
	EmotionSurprised Emotion = "surprised"
	EmotionRelieved  Emotion = "relieved"
)

// ParseEmotion maps a generator-provided emotion string onto a known value.
// Unknown or empty input falls back to "excited" so a usable bark is never
// lost over a bad tag.
func ParseEmotion(s string) Emotion {
	switch Emotion(strings.ToLower(strings.TrimSpace(s))) {
	case EmotionScared:
		return EmotionScared
	case EmotionCocky:
		return EmotionCocky
	case EmotionDisgusted:
		return EmotionDisgusted
	case EmotionSurprised:
		return EmotionSurprised
	case EmotionRelieved:
		return EmotionRelieved
	default:
		return EmotionExcited
	}
}

// GraffitiStyle selects the wall-art rendering for a graffiti tag.
type GraffitiStyle string

const (
	StyleCrude    GraffitiStyle = "crude"
	StyleBold     GraffitiStyle = "bold"
	StyleDripping GraffitiStyle = "dripping"
	StyleStencil  GraffitiStyle = "stencil"
)

// ParseGraffitiStyle maps a generator-provided style onto a known value,
// defaulting to "crude".
func ParseGraffitiStyle(s string) GraffitiStyle {
	switch GraffitiStyle(strings.ToLower(strings.TrimSpace(s))) {
	case StyleBold:
		return StyleBold
	case StyleDripping:
		return StyleDripping
	case StyleStencil:
		return StyleStencil
	default:
		return StyleCrude
	}
}

// BarkItem is one racer one-liner. Pooled items are consumed at most once.
type BarkItem struct {
	Line    string  `json:"line"`
	Emotion Emotion `json:"emotion"`
}

// GraffitiItem is a short wall tag, at most 3 lines of 2-4 words each.
type GraffitiItem struct {
	Text  string        `json:"text"`
	Style GraffitiStyle `json:"style"`
}

// Event categories understood by GetBark. Unrecognized categories are served
// from the generic table.
const (
	CategoryNearMiss = "near-miss"
	CategoryStomp    = "stomp"
	CategoryHit      = "hit"
	CategoryBoost    = "boost"
	CategoryCombo    = "combo"
	CategoryGeneric  = "generic"
)

// CategoryOf normalizes an event category, mapping anything unknown to
// generic.
func CategoryOf(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case CategoryNearMiss:
		return CategoryNearMiss
	case CategoryStomp:
		return CategoryStomp
	case CategoryHit:
		return CategoryHit
	case CategoryBoost:
		return CategoryBoost
	case CategoryCombo:
		return CategoryCombo
	default:
		return CategoryGeneric
	}
}
