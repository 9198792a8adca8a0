package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

type SceneType string

const (
	SceneNarration   SceneType = "narration"
	SceneDialogue    SceneType = "dialogue"
	SceneDescription SceneType = "description"
	SceneAction      SceneType = "action"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderNeutral Gender = "neutral"
)

type Age string

const (
	AgeChild      Age = "child"
	AgeYoungAdult Age = "young_adult"
	AgeAdult      Age = "adult"
	AgeElderly    Age = "elderly"
)

type Emotion string

const (
	EmotionNeutral    Emotion = "neutral"
	EmotionJoyful     Emotion = "joyful"
	EmotionTerrified  Emotion = "terrified"
	EmotionAngry      Emotion = "angry"
	EmotionExcited    Emotion = "excited"
	EmotionSad        Emotion = "sad"
	EmotionMysterious Emotion = "mysterious"
	EmotionHappy      Emotion = "happy"
	EmotionScared     Emotion = "scared"
)

// DefaultCharacter is the character tag used when none is known.
const DefaultCharacter = "narrator"

var (
	sceneTypes = []SceneType{SceneNarration, SceneDialogue, SceneDescription, SceneAction}
	genders    = []Gender{GenderMale, GenderFemale, GenderNeutral}
	ages       = []Age{AgeChild, AgeYoungAdult, AgeAdult, AgeElderly}
	emotions   = []Emotion{
		EmotionNeutral, EmotionJoyful, EmotionTerrified, EmotionAngry, EmotionExcited,
		EmotionSad, EmotionMysterious, EmotionHappy, EmotionScared,
	}
)

// Annotation is the narrative judgment attached to one paragraph. Every field
// is always populated; SpeakerName is the only optional value.
type Annotation struct {
	SceneType   SceneType `json:"sceneType"`
	Character   string    `json:"character"`
	Gender      Gender    `json:"gender"`
	Age         Age       `json:"age"`
	Emotion     Emotion   `json:"emotion"`
	IsDialogue  bool      `json:"isDialogue"`
	SpeakerName string    `json:"speakerName,omitempty"`
}

// Default is the plain narration annotation substituted when annotation fails.
func Default() Annotation {
	return Annotation{
		SceneType: SceneNarration,
		Character: DefaultCharacter,
		Gender:    GenderNeutral,
		Age:       AgeAdult,
		Emotion:   EmotionNeutral,
	}
}

// Emotions lists every known emotion.
func Emotions() []Emotion {
	return append([]Emotion(nil), emotions...)
}

// ParseWire decodes an annotation service payload. Fields may be missing,
// mis-cased, snake_case or carry unknown values; all of them fall back to
// Default. Only a payload that is not a JSON object is an error.
func ParseWire(data []byte) (Annotation, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Default(), fmt.Errorf("decoding annotation: %w", err)
	}
	if raw == nil {
		return Default(), fmt.Errorf("decoding annotation: not an object")
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[normalizeKey(k)] = v
	}

	a := Default()
	a.SceneType = oneOf(stringField(fields, "scenetype"), sceneTypes, a.SceneType)
	a.Gender = oneOf(stringField(fields, "gender"), genders, a.Gender)
	a.Age = oneOf(stringField(fields, "age"), ages, a.Age)
	a.Emotion = oneOf(stringField(fields, "emotion"), emotions, a.Emotion)

	if character := stringField(fields, "character"); character != "" {
		a.Character = character
	}
	a.SpeakerName = strings.TrimSpace(stringField(fields, "speakername"))

	if v, ok := fields["isdialogue"].(bool); ok {
		a.IsDialogue = v
	} else {
		a.IsDialogue = a.SceneType == SceneDialogue
	}

	return a.Normalize(), nil
}

// Normalize replaces empty or unknown fields with their defaults.
func (a Annotation) Normalize() Annotation {
	d := Default()
	a.SceneType = oneOf(string(a.SceneType), sceneTypes, d.SceneType)
	a.Gender = oneOf(string(a.Gender), genders, d.Gender)
	a.Age = oneOf(string(a.Age), ages, d.Age)
	a.Emotion = oneOf(string(a.Emotion), emotions, d.Emotion)

	a.Character = strings.ToLower(strings.TrimSpace(a.Character))
	if a.Character == "" {
		a.Character = d.Character
	}
	return a
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func oneOf[T ~string](value string, allowed []T, fallback T) T {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "_")
	value = strings.ReplaceAll(value, "-", "_")
	for _, candidate := range allowed {
		if string(candidate) == value {
			return candidate
		}
	}
	return fallback
}
