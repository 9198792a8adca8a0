package voice

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"audionest/internal/domain/narrative"
)

var ErrNoDefaultVoice = errors.New("voice library has no default voice")

// Tier says which step of the fallback chain produced a voice.
type Tier int

const (
	TierExact Tier = iota
	TierCharacterNeutral
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierCharacterNeutral:
		return "character_neutral"
	default:
		return "default"
	}
}

// Library maps "<character>_<emotion>" keys to voice identifiers.
type Library struct {
	voices       map[string]string
	defaultVoice string
}

func NewLibrary(defaultVoice string, voices map[string]string) (Library, error) {
	defaultVoice = strings.TrimSpace(defaultVoice)
	if defaultVoice == "" {
		return Library{}, ErrNoDefaultVoice
	}

	copied := make(map[string]string, len(voices))
	for k, v := range voices {
		v = strings.TrimSpace(v)
		if v == "" {
			return Library{}, fmt.Errorf("voice library key %q has no voice", k)
		}
		copied[strings.ToLower(strings.TrimSpace(k))] = v
	}

	return Library{voices: copied, defaultVoice: defaultVoice}, nil
}

// Key builds the library key for a character and emotion.
func Key(character string, emotion narrative.Emotion) string {
	return strings.ToLower(strings.TrimSpace(character)) + "_" + string(emotion)
}

// Lookup walks exact key, then the character's neutral key, then the default
// voice. It always returns a voice.
func (l Library) Lookup(character string, emotion narrative.Emotion) (voiceID, key string, tier Tier) {
	exact := Key(character, emotion)
	if v, ok := l.voices[exact]; ok {
		return v, exact, TierExact
	}

	neutral := Key(character, narrative.EmotionNeutral)
	if v, ok := l.voices[neutral]; ok {
		return v, neutral, TierCharacterNeutral
	}

	return l.defaultVoice, "", TierDefault
}

func (l Library) Default() string {
	return l.defaultVoice
}

// Keys returns the library keys in sorted order.
func (l Library) Keys() []string {
	keys := make([]string, 0, len(l.voices))
	for k := range l.voices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l Library) Voice(key string) (string, bool) {
	v, ok := l.voices[key]
	return v, ok
}

// BuiltinLibrary returns the stock voice table for a synthesis engine.
func BuiltinLibrary(engine string) Library {
	var (
		def    string
		voices map[string]string
	)

	switch engine {
	case "espeak":
		def = "en-us"
		voices = map[string]string{
			"narrator_neutral":    "en-us",
			"narrator_mysterious": "en-gb+m3",
			"narrator_sad":        "en-gb+f2",
			"hero_neutral":        "en-us+m3",
			"hero_angry":          "en-us+m5",
			"heroine_neutral":     "en-us+f3",
			"heroine_scared":      "en-us+f4",
			"old_wizard_neutral":  "en-gb+m7",
			"villain_neutral":     "en-gb+m2",
			"child_neutral":       "en-us+f5",
		}
	case "googleclassic":
		def = "en-US-Standard-C"
		voices = map[string]string{
			"narrator_neutral":    "en-US-Standard-C",
			"narrator_mysterious": "en-GB-Standard-B",
			"narrator_sad":        "en-GB-Standard-A",
			"hero_neutral":        "en-US-Standard-D",
			"hero_angry":          "en-US-Standard-B",
			"heroine_neutral":     "en-US-Standard-E",
			"heroine_scared":      "en-US-Standard-F",
			"old_wizard_neutral":  "en-GB-Standard-D",
			"villain_neutral":     "en-GB-Standard-B",
			"child_neutral":       "en-US-Standard-G",
		}
	default:
		def = "af_bella"
		voices = map[string]string{
			"narrator_neutral":    "af_bella",
			"narrator_joyful":     "af_bella",
			"narrator_sad":        "bm_daniel",
			"narrator_mysterious": "bm_george",
			"hero_neutral":        "am_adam",
			"heroine_neutral":     "af_sarah",
			"heroine_scared":      "af_sky",
			"old_wizard_neutral":  "bm_george",
			"villain_neutral":     "bm_lewis",
			"child_neutral":       "af_sky",
		}
	}

	lib, _ := NewLibrary(def, voices)
	return lib
}
