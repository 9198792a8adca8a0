package voice

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionest/internal/domain/narrative"
)

type stubChecker map[string]bool

func (s stubChecker) VoiceAvailable(_ context.Context, voiceID string) bool {
	return s[voiceID]
}

func testLibrary(t *testing.T) Library {
	t.Helper()
	lib, err := NewLibrary("narrator-voice", map[string]string{
		"Hero_Angry":    "hero-angry-voice",
		"hero_neutral":  "hero-voice",
		"villain_angry": "villain-angry-voice",
	})
	require.NoError(t, err)
	return lib
}

func TestLibrary_Lookup(t *testing.T) {
	lib := testLibrary(t)

	tests := []struct {
		name      string
		character string
		emotion   narrative.Emotion
		voice     string
		tier      Tier
	}{
		{"exact", "hero", narrative.EmotionAngry, "hero-angry-voice", TierExact},
		{"exact ignores case", "HERO", narrative.EmotionAngry, "hero-angry-voice", TierExact},
		{"character neutral", "hero", narrative.EmotionSad, "hero-voice", TierCharacterNeutral},
		{"no neutral entry", "villain", narrative.EmotionSad, "narrator-voice", TierDefault},
		{"unknown character", "ghost", narrative.EmotionAngry, "narrator-voice", TierDefault},
		{"empty character", "", narrative.EmotionNeutral, "narrator-voice", TierDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, tier := lib.Lookup(tt.character, tt.emotion)
			assert.Equal(t, tt.voice, v)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestNewLibrary_Validation(t *testing.T) {
	_, err := NewLibrary("", nil)
	assert.ErrorIs(t, err, ErrNoDefaultVoice)

	_, err = NewLibrary("x", map[string]string{"a_neutral": " "})
	assert.Error(t, err)
}

func TestNewLibrary_CopiesInput(t *testing.T) {
	src := map[string]string{"hero_neutral": "a"}
	lib, err := NewLibrary("d", src)
	require.NoError(t, err)

	src["hero_neutral"] = "b"
	v, ok := lib.Voice("hero_neutral")
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestModulation_UnknownEmotionIsNeutral(t *testing.T) {
	r := NewResolver(testLibrary(t), nil)

	for _, e := range []narrative.Emotion{"bored", "", "furious"} {
		p, _, _ := r.Profile("hero", e)
		assert.Equal(t, Neutral, p.Modulation, string(e))
	}
}

func TestModulation_Table(t *testing.T) {
	table := DefaultModulations()

	excited := table.Lookup(narrative.EmotionExcited)
	assert.Greater(t, excited.Speed, 1.0)
	assert.Greater(t, excited.Pitch, 1.0)
	assert.Greater(t, excited.Volume, 1.0)

	scared := table.Lookup(narrative.EmotionScared)
	assert.Greater(t, scared.Speed, 1.0)
	assert.Less(t, scared.Volume, 1.0)
	assert.Positive(t, scared.Tremble)

	sad := table.Lookup(narrative.EmotionSad)
	assert.Less(t, sad.Speed, 1.0)
	assert.Less(t, sad.Pitch, 1.0)
	assert.Less(t, sad.Volume, 1.0)

	for _, e := range narrative.Emotions() {
		m := table.Lookup(e)
		assert.Positive(t, m.Speed)
		assert.Positive(t, m.Pitch)
		assert.Positive(t, m.Volume)
	}
}

func TestResolver_InjectedTable(t *testing.T) {
	custom := ModulationTable{narrative.EmotionSad: {Speed: 0.5, Pitch: 0.5, Volume: 0.5}}
	r := NewResolver(testLibrary(t), custom)
	custom[narrative.EmotionSad] = Neutral

	p, _, _ := r.Profile("hero", narrative.EmotionSad)
	assert.Equal(t, 0.5, p.Speed)

	p, _, _ = r.Profile("hero", narrative.EmotionExcited)
	assert.Equal(t, Neutral, p.Modulation)
}

func TestResolver_UnavailableVoiceDegrades(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewResolver(testLibrary(t), nil,
		WithChecker(stubChecker{"hero-voice": true}),
		WithLogger(logger),
	)

	res := r.Resolve(context.Background(), narrative.Annotation{Character: "hero", Emotion: narrative.EmotionAngry})

	assert.True(t, res.Degraded)
	assert.Equal(t, "narrator-voice", res.Profile.VoiceID)
	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, DefaultModulations()[narrative.EmotionAngry], res.Profile.Modulation)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "hero-angry-voice", hook.LastEntry().Data["voice"])
}

func TestResolver_AvailableVoiceKept(t *testing.T) {
	r := NewResolver(testLibrary(t), nil, WithChecker(stubChecker{"hero-voice": true}))

	res := r.Resolve(context.Background(), narrative.Annotation{Character: "hero", Emotion: narrative.EmotionSad})

	assert.False(t, res.Degraded)
	assert.Equal(t, "hero-voice", res.Profile.VoiceID)
	assert.Equal(t, "hero_neutral", res.Key)
	assert.Equal(t, TierCharacterNeutral, res.Tier)
}

func TestResolver_DefaultProfile(t *testing.T) {
	r := NewResolver(testLibrary(t), nil)
	assert.Equal(t, Profile{VoiceID: "narrator-voice", Modulation: Neutral}, r.DefaultProfile())
}

func TestBuiltinLibrary(t *testing.T) {
	for _, engine := range []string{"espeak", "googleclassic", "mock", ""} {
		lib := BuiltinLibrary(engine)
		assert.NotEmpty(t, lib.Default(), engine)
		v, _, tier := lib.Lookup("narrator", narrative.EmotionNeutral)
		assert.Equal(t, TierExact, tier, engine)
		assert.NotEmpty(t, v)
	}
}
