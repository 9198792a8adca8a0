// internal/story/tts/tts.go
package tts

import (
	"context"
	"errors"

	"audionest/internal/story/audio"
)

var (
	// ErrSynthesisFailed wraps every failure to turn text into audio.
	ErrSynthesisFailed = errors.New("synthesis failed")

	ErrEmptyInput        = errors.New("empty input text")
	ErrVoiceUnavailable  = errors.New("voice unavailable")
	ErrEngineUnavailable = errors.New("tts engine unavailable")
)

type Config struct {
	Type      string
	CachePath string
	Voice     string

	// Language and Encoding apply to the Google engine.
	Language string
	Encoding string

	// WordsPerMinute is the espeak base rate the speed multiplier scales.
	WordsPerMinute int
}

// Request is one synthesis call. Speed is a multiplier on the engine's normal
// rate; zero means 1.0.
type Request struct {
	Text    string
	VoiceID string
	Speed   float64
}

// Synthesizer turns text into audio clips. An empty result is always reported
// as an error wrapping ErrSynthesisFailed.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]audio.Clip, error)
	Voices(ctx context.Context) ([]string, error)
	DefaultVoice() string
}

// Cacheable is implemented by engines that keep synthesized audio on disk.
type Cacheable interface {
	CacheStats() (map[string]interface{}, error)
	ClearCache() error
}

// VoiceInfo provides detailed information about available voices
type VoiceInfo struct {
	Name         string `json:"name"`
	LanguageCode string `json:"language_code"`
	Gender       string `json:"gender"`
	Natural      bool   `json:"natural"`
	Description  string `json:"description"`
}

// Describer is implemented by engines that can list voices with details.
type Describer interface {
	VoiceInfo(ctx context.Context) ([]VoiceInfo, error)
}

func (r Request) speed() float64 {
	if r.Speed <= 0 {
		return 1.0
	}
	return r.Speed
}
