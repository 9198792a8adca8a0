package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Annotator AnnotatorConfig `mapstructure:"annotator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Source    SourceConfig    `mapstructure:"source"`
	Voice     VoiceConfig     `mapstructure:"voice"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TTSConfig struct {
	Type      string        `mapstructure:"type"`
	CachePath string        `mapstructure:"cache_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Google    struct {
		LanguageCode string `mapstructure:"language_code"`
		Encoding     string `mapstructure:"encoding"`
	} `mapstructure:"google"`
	ESpeak struct {
		WordsPerMinute int `mapstructure:"words_per_minute"`
	} `mapstructure:"espeak"`
}

type AnnotatorConfig struct {
	Type              string        `mapstructure:"type"`
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	Retries           int           `mapstructure:"retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type PipelineConfig struct {
	OutputDir         string        `mapstructure:"output_dir"`
	MaxParagraphChars int           `mapstructure:"max_paragraph_chars"`
	ParagraphPause    time.Duration `mapstructure:"paragraph_pause"`
	ChapterPause      time.Duration `mapstructure:"chapter_pause"`
	IntroPause        time.Duration `mapstructure:"intro_pause"`
	SampleRate        int           `mapstructure:"sample_rate"`
	AnnounceTitles    bool          `mapstructure:"announce_titles"`
	IncludeIntro      bool          `mapstructure:"include_intro"`
	Workers           int           `mapstructure:"workers"`
}

type SourceConfig struct {
	CacheDir string        `mapstructure:"cache_dir"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// VoiceConfig overrides the engine's built-in voice library. Library keys are
// "<character>_<emotion>".
type VoiceConfig struct {
	Default string            `mapstructure:"default"`
	Library map[string]string `mapstructure:"library"`
}

// SetDefaults registers every key with viper so env variables and flags can
// bind to it.
func SetDefaults() {
	cache := CacheDirectory()

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.cache_path", filepath.Join(cache, "tts"))
	viper.SetDefault("tts.timeout", 60*time.Second)
	viper.SetDefault("tts.google.language_code", "en-US")
	viper.SetDefault("tts.google.encoding", "linear16")
	viper.SetDefault("tts.espeak.words_per_minute", 175)

	viper.SetDefault("annotator.type", "auto")
	viper.SetDefault("annotator.url", "https://api.groq.com/openai/v1/chat/completions")
	viper.SetDefault("annotator.api_key", "")
	viper.SetDefault("annotator.model", "llama-3.3-70b-versatile")
	viper.SetDefault("annotator.timeout", 30*time.Second)
	viper.SetDefault("annotator.attempt_timeout", time.Duration(0)) // derived from timeout and retries
	viper.SetDefault("annotator.retries", 2)
	viper.SetDefault("annotator.requests_per_second", 2.0)

	viper.SetDefault("pipeline.output_dir", "audiobook")
	viper.SetDefault("pipeline.max_paragraph_chars", 1000)
	viper.SetDefault("pipeline.paragraph_pause", 500*time.Millisecond)
	viper.SetDefault("pipeline.chapter_pause", 3000*time.Millisecond)
	viper.SetDefault("pipeline.intro_pause", 2000*time.Millisecond)
	viper.SetDefault("pipeline.sample_rate", 24000)
	viper.SetDefault("pipeline.announce_titles", true)
	viper.SetDefault("pipeline.include_intro", false)
	viper.SetDefault("pipeline.workers", 1)

	viper.SetDefault("source.cache_dir", filepath.Join(cache, "source"))
	viper.SetDefault("source.max_age", 24*time.Hour)

	viper.SetDefault("voice.default", "")
	viper.SetDefault("voice.library", map[string]string{})
}

// Load reads the merged viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Annotator.APIKey == "" {
		cfg.Annotator.APIKey = os.Getenv("GROQ_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Annotator.Type {
	case "", "auto", "http", "heuristic":
	default:
		return fmt.Errorf("annotator.type must be auto, http or heuristic, got %q", c.Annotator.Type)
	}
	if c.Annotator.Retries < 0 {
		return fmt.Errorf("annotator.retries must not be negative")
	}
	if c.Annotator.AttemptTimeout < 0 {
		return fmt.Errorf("annotator.attempt_timeout must not be negative")
	}
	if c.Annotator.Timeout > 0 && c.Annotator.AttemptTimeout > c.Annotator.Timeout {
		return fmt.Errorf("annotator.attempt_timeout must not exceed annotator.timeout")
	}
	if c.Pipeline.ParagraphPause < 0 || c.Pipeline.ChapterPause < 0 || c.Pipeline.IntroPause < 0 {
		return fmt.Errorf("pipeline pauses must not be negative")
	}
	if c.Pipeline.SampleRate < 0 {
		return fmt.Errorf("pipeline.sample_rate must not be negative")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	return nil
}

// InitLogging applies the log settings to the standard logrus logger.
func (c *Config) InitLogging() {
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logrus.SetLevel(level)
	}
	if strings.EqualFold(c.Log.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// CacheDirectory returns the appropriate cache directory
func CacheDirectory() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "audionest")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".audionest", "cache")
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, "cache")
	}

	return "cache"
}

// PerAttempt is the timeout for a single annotation request. Without an
// explicit attempt_timeout the paragraph budget is shared evenly between the
// first attempt and every retry.
func (a AnnotatorConfig) PerAttempt() time.Duration {
	if a.AttemptTimeout > 0 {
		return a.AttemptTimeout
	}
	return a.Timeout / time.Duration(a.Retries+1)
}
