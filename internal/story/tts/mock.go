package tts

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"

	"audionest/internal/story/audio"
)

// MockEngine produces a quiet sine tone whose length follows the word count.
// It needs no external tools, so it backs dry runs and tests.
type MockEngine struct {
	SampleRate   beep.SampleRate
	WordDuration time.Duration

	// Available restricts the accepted voices; nil accepts every voice.
	Available []string

	// Fail, when set, can reject a request before any audio is produced.
	Fail func(Request) error

	mu    sync.Mutex
	calls []Request
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		SampleRate:   audio.DefaultSampleRate,
		WordDuration: 400 * time.Millisecond,
	}
}

func (m *MockEngine) Name() string {
	return EngineTypeMock.String()
}

func (m *MockEngine) DefaultVoice() string {
	return "mock-voice"
}

func (m *MockEngine) Voices(context.Context) ([]string, error) {
	if m.Available == nil {
		return nil, nil
	}
	return slices.Clone(m.Available), nil
}

func (m *MockEngine) Synthesize(ctx context.Context, req Request) ([]audio.Clip, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	words := len(strings.Fields(req.Text))
	if words == 0 {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, ErrEmptyInput)
	}
	if m.Available != nil && !slices.Contains(m.Available, req.VoiceID) {
		return nil, fmt.Errorf("%w: %w: %s", ErrSynthesisFailed, ErrVoiceUnavailable, req.VoiceID)
	}
	if m.Fail != nil {
		if err := m.Fail(req); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
		}
	}

	rate := m.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	d := time.Duration(float64(m.WordDuration) * float64(words) / req.speed())
	n := max(rate.N(d), 1)

	clip := audio.Clip{SampleRate: rate, Samples: make([]float64, n)}
	for i := range clip.Samples {
		clip.Samples[i] = 0.1 * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
	}
	return []audio.Clip{clip}, nil
}

// Calls returns every request received so far, in order.
func (m *MockEngine) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}
