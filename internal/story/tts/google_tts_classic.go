package tts

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"audionest/internal/story/audio"
)

const (
	googleChunkLimit    = 4800 // a little under 5000 to be safe
	googleSampleRate    = 24000
	googleEngineDirName = "google_classic"
	defaultGoogleVoice  = "en-US-Standard-C"
)

type voiceLister interface {
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
}

type GoogleClassicEngine struct {
	client       *texttospeech.Client
	lister       voiceLister
	config       Config
	cacheRootDir string
	mu           sync.Mutex
}

func newGoogleClassicEngine(config Config) (*GoogleClassicEngine, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create TTS client: %w", ErrEngineUnavailable, err)
	}

	if config.CachePath != "" {
		if err := os.MkdirAll(config.CachePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}
	if config.Voice == "" {
		config.Voice = defaultGoogleVoice
	}
	if config.Language == "" {
		config.Language = "en-US"
	}

	return &GoogleClassicEngine{
		client:       client,
		lister:       client,
		config:       config,
		cacheRootDir: config.CachePath,
	}, nil
}

func (g *GoogleClassicEngine) Name() string {
	return EngineTypeGoogleClassic.String()
}

func (g *GoogleClassicEngine) DefaultVoice() string {
	return g.config.Voice
}

func (g *GoogleClassicEngine) Close() error {
	return g.client.Close()
}

func (g *GoogleClassicEngine) Synthesize(ctx context.Context, req Request) ([]audio.Clip, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, ErrEmptyInput)
	}

	voice := req.VoiceID
	if voice == "" || voice == "default" {
		voice = g.config.Voice
	}

	// Create a unique identifier for this specific text + voice combination
	contentHash := md5Sum(fmt.Sprintf("%s|%s|%.2f", text, voice, req.speed()))[:12]

	chunks := splitIntoChunks(text, googleChunkLimit)
	clips := make([]audio.Clip, 0, len(chunks))

	for i, chunk := range chunks {
		data, err := g.chunkAudio(ctx, chunk, voice, req.speed(), contentHash, i)
		if err != nil {
			return nil, err
		}

		clip, err := g.decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %w", ErrSynthesisFailed, i, err)
		}
		if !clip.Empty() {
			clips = append(clips, clip)
		}
	}

	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: no audio returned", ErrSynthesisFailed)
	}
	return clips, nil
}

// chunkAudio returns cached audio for the chunk or synthesizes and caches it.
func (g *GoogleClassicEngine) chunkAudio(ctx context.Context, chunk, voice string, speed float64, hash string, index int) ([]byte, error) {
	chunkPath := ""
	if g.cacheRootDir != "" {
		dir := filepath.Join(g.cacheRootDir, googleEngineDirName, voice)
		chunkPath = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", hash, index, g.extension()))

		if data, err := os.ReadFile(chunkPath); err == nil {
			logrus.WithField("path", chunkPath).Debug("Using cached audio chunk")
			return data, nil
		}
	}

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding:   g.encoding(),
		SampleRateHertz: googleSampleRate,
	}
	// Chirp voices don't support speakingRate
	if !strings.Contains(strings.ToLower(voice), "chirp") {
		audioCfg.SpeakingRate = speed
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageFromVoice(voice, g.config.Language),
			Name:         voice,
		},
		AudioConfig: audioCfg,
	})
	if err != nil {
		if isVoiceError(err) {
			return nil, fmt.Errorf("%w: %w: %s", ErrSynthesisFailed, ErrVoiceUnavailable, voice)
		}
		return nil, fmt.Errorf("%w: failed to synthesize chunk %d: %w", ErrSynthesisFailed, index, err)
	}

	if chunkPath != "" {
		g.mu.Lock()
		defer g.mu.Unlock()
		if err := os.MkdirAll(filepath.Dir(chunkPath), 0755); err == nil {
			if err := os.WriteFile(chunkPath, resp.AudioContent, 0644); err != nil {
				logrus.WithError(err).WithField("path", chunkPath).Warn("Failed to cache audio chunk")
			}
		}
	}

	return resp.AudioContent, nil
}

func (g *GoogleClassicEngine) encoding() texttospeechpb.AudioEncoding {
	if strings.EqualFold(g.config.Encoding, "mp3") {
		return texttospeechpb.AudioEncoding_MP3
	}
	return texttospeechpb.AudioEncoding_LINEAR16
}

func (g *GoogleClassicEngine) extension() string {
	if g.encoding() == texttospeechpb.AudioEncoding_MP3 {
		return "mp3"
	}
	return "wav"
}

func (g *GoogleClassicEngine) decode(data []byte) (audio.Clip, error) {
	if g.encoding() == texttospeechpb.AudioEncoding_MP3 {
		return audio.DecodeMP3(io.NopCloser(bytes.NewReader(data)))
	}
	// LINEAR16 responses carry a WAV header.
	return audio.DecodeWAV(bytes.NewReader(data))
}

// Voices lists every voice the service offers, in all languages, so library
// entries such as "en-GB-Standard-B" pass the availability check.
func (g *GoogleClassicEngine) Voices(ctx context.Context) ([]string, error) {
	infos, err := g.listVoices(ctx, "")
	if err != nil {
		return nil, err
	}
	voices := make([]string, 0, len(infos))
	for _, v := range infos {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// VoiceInfo describes the voices for the configured language.
func (g *GoogleClassicEngine) VoiceInfo(ctx context.Context) ([]VoiceInfo, error) {
	return g.listVoices(ctx, g.config.Language)
}

func (g *GoogleClassicEngine) listVoices(ctx context.Context, language string) ([]VoiceInfo, error) {
	resp, err := g.lister.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{
		LanguageCode: language,
	})
	if err != nil {
		return nil, err
	}

	infos := make([]VoiceInfo, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		lower := strings.ToLower(v.Name)
		infos = append(infos, VoiceInfo{
			Name:         v.Name,
			LanguageCode: lang,
			Gender:       strings.ToLower(v.SsmlGender.String()),
			Natural:      strings.Contains(lower, "wavenet") || strings.Contains(lower, "neural") || strings.Contains(lower, "chirp"),
		})
	}
	return infos, nil
}

// CacheStats returns cache statistics for the engine
func (g *GoogleClassicEngine) CacheStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalFiles int64
	var totalSize int64

	err := filepath.Walk(g.cacheRootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}

		if !info.IsDir() {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats["cache_directory"] = g.cacheRootDir
	stats["cached_files"] = totalFiles
	stats["total_size_mb"] = float64(totalSize) / (1024 * 1024)

	return stats, nil
}

// ClearCache removes all cached files
func (g *GoogleClassicEngine) ClearCache() error {
	if g.cacheRootDir == "" {
		return nil
	}
	return os.RemoveAll(g.cacheRootDir)
}

func isVoiceError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound:
		return strings.Contains(strings.ToLower(err.Error()), "voice")
	default:
		return false
	}
}

// languageFromVoice takes the language prefix of names like "en-GB-Standard-A".
func languageFromVoice(voice, fallback string) string {
	parts := strings.Split(voice, "-")
	if len(parts) >= 3 && len(parts[0]) == 2 && len(parts[1]) == 2 {
		return parts[0] + "-" + parts[1]
	}
	return fallback
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
