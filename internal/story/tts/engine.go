package tts

import (
	"fmt"
	"os"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeAuto          EngineType = "auto" // Automatically choose best available
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates a synthesizer for the configured engine type.
func NewEngine(config Config) (Synthesizer, error) {
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = ResolveEngineType(config.Type).String()
	}

	switch config.Type {
	case EngineTypeMock.String():
		return NewMockEngine(), nil

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicEngine(config)

	case EngineTypeESpeak.String():
		return newESpeakEngine(config)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// ResolveEngineType turns "auto" into the best engine for this machine and
// returns any other type unchanged.
func ResolveEngineType(t string) EngineType {
	if t != "" && t != EngineTypeAuto.String() {
		return EngineType(t)
	}
	if hasGoogleCredentials() {
		return EngineTypeGoogleClassic
	}
	return EngineTypeESpeak
}

// GetAvailableEngines returns engines usable on the current machine
func GetAvailableEngines() []EngineType {
	engines := []EngineType{EngineTypeMock}

	if _, err := findESpeakExecutable(); err == nil {
		engines = append(engines, EngineTypeESpeak)
	}
	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
