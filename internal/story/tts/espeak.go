// Cross-platform eSpeak implementation
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"audionest/internal/story/audio"
)

const defaultWordsPerMinute = 175

// ESpeakEngine synthesizes with eSpeak/eSpeak-NG, writing each request to a
// temporary WAV file that is decoded and removed.
type ESpeakEngine struct {
	path   string
	config Config
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = defaultWordsPerMinute
	}
	if config.Voice == "" {
		config.Voice = "en-us"
	}

	engine := &ESpeakEngine{path: espeakPath, config: config}

	if err := engine.testInstallation(); err != nil {
		return nil, fmt.Errorf("%w: eSpeak test failed: %w", ErrEngineUnavailable, err)
	}

	return engine, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakEngine) testInstallation() error {
	return exec.Command(e.path, "--version").Run()
}

func (e *ESpeakEngine) Name() string {
	return EngineTypeESpeak.String()
}

func (e *ESpeakEngine) DefaultVoice() string {
	return e.config.Voice
}

func (e *ESpeakEngine) Synthesize(ctx context.Context, req Request) ([]audio.Clip, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, ErrEmptyInput)
	}

	voice := req.VoiceID
	if voice == "" || voice == "default" {
		voice = e.config.Voice
	}

	out, err := os.CreateTemp("", "audionest-espeak-*.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	out.Close()
	defer os.Remove(out.Name())

	cmd := exec.CommandContext(ctx, e.path, e.args(voice, req.speed(), out.Name())...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(strings.ToLower(msg), "voice") {
			return nil, fmt.Errorf("%w: %w: %s", ErrSynthesisFailed, ErrVoiceUnavailable, voice)
		}
		return nil, fmt.Errorf("%w: espeak: %w: %s", ErrSynthesisFailed, err, msg)
	}

	f, err := os.Open(out.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if clip.Empty() {
		return nil, fmt.Errorf("%w: espeak produced no audio", ErrSynthesisFailed)
	}
	return []audio.Clip{clip}, nil
}

func (e *ESpeakEngine) args(voice string, speed float64, outPath string) []string {
	wpm := int(float64(e.config.WordsPerMinute) * speed)
	return []string{
		"-v", voice,
		"-s", strconv.Itoa(wpm),
		"-w", filepath.Clean(outPath),
		"--stdin",
	}
}

func (e *ESpeakEngine) Voices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}

	return parseESpeakVoices(string(output)), nil
}

// parseESpeakVoices collects the language and voice name columns of
// `espeak --voices`.
func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[1], fields[3])
		}
	}

	return voices
}
