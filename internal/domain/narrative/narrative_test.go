package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWire_FullPayload(t *testing.T) {
	payload := `{
		"sceneType": "dialogue",
		"character": "old_wizard",
		"gender": "male",
		"age": "elderly",
		"emotion": "mysterious",
		"isDialogue": true,
		"speakerName": "Merlin"
	}`

	a, err := ParseWire([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, Annotation{
		SceneType:   SceneDialogue,
		Character:   "old_wizard",
		Gender:      GenderMale,
		Age:         AgeElderly,
		Emotion:     EmotionMysterious,
		IsDialogue:  true,
		SpeakerName: "Merlin",
	}, a)
}

func TestParseWire_MissingFieldsDefaulted(t *testing.T) {
	a, err := ParseWire([]byte(`{"emotion": "sad"}`))
	require.NoError(t, err)

	want := Default()
	want.Emotion = EmotionSad
	assert.Equal(t, want, a)
}

func TestParseWire_EmptyObject(t *testing.T) {
	a, err := ParseWire([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Default(), a)
}

func TestParseWire_LenientKeysAndValues(t *testing.T) {
	payload := `{
		"scene_type": "Dialogue",
		"Emotion": "ANGRY",
		"age": "young adult",
		"gender": "robot",
		"character": 42
	}`

	a, err := ParseWire([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, SceneDialogue, a.SceneType)
	assert.True(t, a.IsDialogue, "dialogue scenes imply dialogue when the flag is absent")
	assert.Equal(t, EmotionAngry, a.Emotion)
	assert.Equal(t, AgeYoungAdult, a.Age)
	assert.Equal(t, GenderNeutral, a.Gender)
	assert.Equal(t, DefaultCharacter, a.Character)
}

func TestParseWire_NotAnObject(t *testing.T) {
	for _, payload := range []string{`not json`, `[1,2]`, `null`, `"text"`} {
		a, err := ParseWire([]byte(payload))
		assert.Error(t, err, payload)
		assert.Equal(t, Default(), a, payload)
	}
}

func TestAnnotation_Normalize(t *testing.T) {
	a := Annotation{Character: "  Hero ", Emotion: "furious", SceneType: "action"}.Normalize()

	assert.Equal(t, "hero", a.Character)
	assert.Equal(t, EmotionNeutral, a.Emotion)
	assert.Equal(t, SceneAction, a.SceneType)
	assert.Equal(t, GenderNeutral, a.Gender)
	assert.Equal(t, AgeAdult, a.Age)
}

func TestEmotions_ReturnsCopy(t *testing.T) {
	list := Emotions()
	require.Len(t, list, 9)
	list[0] = "changed"
	assert.Equal(t, EmotionNeutral, Emotions()[0])
}
