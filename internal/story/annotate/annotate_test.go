package annotate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionest/internal/domain/narrative"
)

func TestThread(t *testing.T) {
	reqs := Thread([]string{"a", "b", "c"})

	assert.Equal(t, []Request{
		{Text: "a", PreviousContext: ""},
		{Text: "b", PreviousContext: "a"},
		{Text: "c", PreviousContext: "b"},
	}, reqs)
	assert.Empty(t, Thread(nil))
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}))
}

func newTestAnnotator(t *testing.T, url string, retries int) *ChatAnnotator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := NewChatAnnotator(ChatConfig{
		URL:     url,
		APIKey:  "secret",
		Timeout: time.Second,
		Retries: retries,
		Backoff: time.Millisecond,
	}, WithLogger(logger))
	require.NoError(t, err)
	return a
}

func TestChatAnnotator_SendsContextAndParses(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(t, w, "```json\n{\"sceneType\":\"dialogue\",\"character\":\"villain\",\"emotion\":\"angry\"}\n```")
	}))
	defer srv.Close()

	a := newTestAnnotator(t, srv.URL, 0)

	annotation, err := a.Annotate(context.Background(), Request{Text: "Get out!", PreviousContext: "The door opened."})
	require.NoError(t, err)

	assert.Equal(t, narrative.SceneDialogue, annotation.SceneType)
	assert.Equal(t, "villain", annotation.Character)
	assert.Equal(t, narrative.EmotionAngry, annotation.Emotion)
	assert.True(t, annotation.IsDialogue)
	assert.Equal(t, narrative.AgeAdult, annotation.Age)

	assert.Equal(t, DefaultChatModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "The door opened.")
	assert.Contains(t, got.Messages[1].Content, "Get out!")
}

func TestChatAnnotator_FirstParagraphHasNoContext(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(t, w, `{}`)
	}))
	defer srv.Close()

	annotation, err := newTestAnnotator(t, srv.URL, 0).Annotate(context.Background(), Request{Text: "Once."})
	require.NoError(t, err)
	assert.Equal(t, narrative.Default(), annotation)
	assert.NotContains(t, got.Messages[1].Content, "Previous passage")
}

func TestChatAnnotator_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			chatReply(t, w, "not json at all")
		default:
			chatReply(t, w, `{"emotion":"sad"}`)
		}
	}))
	defer srv.Close()

	annotation, err := newTestAnnotator(t, srv.URL, 2).Annotate(context.Background(), Request{Text: "Rain fell."})
	require.NoError(t, err)
	assert.Equal(t, narrative.EmotionSad, annotation.Emotion)
	assert.EqualValues(t, 3, calls.Load())
}

func TestChatAnnotator_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	annotation, err := newTestAnnotator(t, srv.URL, 1).Annotate(context.Background(), Request{Text: "x"})
	assert.ErrorIs(t, err, ErrAnnotationFailed)
	assert.Equal(t, narrative.Default(), annotation)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatAnnotator_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestAnnotator(t, srv.URL, 3).Annotate(context.Background(), Request{Text: "x"})
	assert.ErrorIs(t, err, ErrAnnotationFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatAnnotator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	a, err := NewChatAnnotator(ChatConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, WithLogger(logger))
	require.NoError(t, err)

	_, err = a.Annotate(context.Background(), Request{Text: "slow"})
	assert.ErrorIs(t, err, ErrAnnotationFailed)
}

func TestChatAnnotator_RetriesAfterHungAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		chatReply(t, w, `{"character":"hero","emotion":"happy"}`)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	a, err := NewChatAnnotator(ChatConfig{
		URL:     srv.URL,
		Timeout: 100 * time.Millisecond,
		Retries: 2,
		Backoff: time.Millisecond,
	}, WithLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	annotation, err := a.Annotate(ctx, Request{Text: "Hello again."})
	require.NoError(t, err)
	assert.Equal(t, "hero", annotation.Character)
	assert.Equal(t, narrative.EmotionHappy, annotation.Emotion)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatAnnotator_EmptyText(t *testing.T) {
	a := newTestAnnotator(t, "http://127.0.0.1:0", 0)
	_, err := a.Annotate(context.Background(), Request{Text: "   "})
	assert.ErrorIs(t, err, ErrAnnotationFailed)
}

func TestNewChatAnnotator_Validation(t *testing.T) {
	_, err := NewChatAnnotator(ChatConfig{Retries: -1})
	assert.Error(t, err)
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		scene   narrative.SceneType
		emotion narrative.Emotion
		gender  narrative.Gender
		speaker string
	}{
		{"plain narration", "The road wound through the hills.", narrative.SceneNarration, narrative.EmotionNeutral, narrative.GenderNeutral, ""},
		{"male dialogue", `"We leave at dawn," he said.`, narrative.SceneDialogue, narrative.EmotionNeutral, narrative.GenderMale, ""},
		{"female dialogue", `"Where are you going?" she asked.`, narrative.SceneDialogue, narrative.EmotionMysterious, narrative.GenderFemale, ""},
		{"named speaker", `"Run!" cried Anna.`, narrative.SceneDialogue, narrative.EmotionExcited, narrative.GenderNeutral, "Anna"},
		{"keyword emotion", "She wept bitter tears by the window.", narrative.SceneNarration, narrative.EmotionSad, narrative.GenderNeutral, ""},
		{"action", "The soldiers charged across the field.", narrative.SceneAction, narrative.EmotionNeutral, narrative.GenderNeutral, ""},
		{"keyword inside a word", "They enjoyed the long evening by the fire.", narrative.SceneNarration, narrative.EmotionNeutral, narrative.GenderNeutral, ""},
		{"whole word joy", "Her heart filled with joy at the sight.", narrative.SceneNarration, narrative.EmotionJoyful, narrative.GenderNeutral, ""},
		{"inflected keyword", "The boy trembled in the cold hallway.", narrative.SceneNarration, narrative.EmotionScared, narrative.GenderNeutral, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Heuristic{}.Annotate(context.Background(), Request{Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.scene, a.SceneType)
			assert.Equal(t, tt.emotion, a.Emotion)
			assert.Equal(t, tt.gender, a.Gender)
			assert.Equal(t, tt.speaker, a.SpeakerName)
			assert.Equal(t, tt.scene == narrative.SceneDialogue, a.IsDialogue)
		})
	}
}

func TestNew(t *testing.T) {
	logger, _ := test.NewNullLogger()

	a, err := New(TypeAuto, ChatConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, Heuristic{}, a)

	a, err = New(TypeAuto, ChatConfig{APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChatAnnotator{}, a)

	a, err = New(TypeHeuristic, ChatConfig{APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, Heuristic{}, a)

	_, err = New("oracle", ChatConfig{}, logger)
	assert.Error(t, err)
}
