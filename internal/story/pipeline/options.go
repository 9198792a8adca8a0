package pipeline

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/faiface/beep"

	"audionest/internal/domain/book"
	"audionest/internal/domain/selection"
	"audionest/internal/story/audio"
)

const (
	DefaultParagraphPause = 500 * time.Millisecond
	DefaultChapterPause   = 3000 * time.Millisecond
	DefaultIntroPause     = 2000 * time.Millisecond

	defaultCallTimeout = 60 * time.Second
	defaultBaseName    = "audiobook"
)

type Options struct {
	OutputDir string
	// BaseName prefixes every artifact; empty derives it from title and selection.
	BaseName string

	IncludeIntro   bool
	AnnounceTitles bool
	Resume         bool

	MaxParagraphChars int
	ParagraphPause    time.Duration
	ChapterPause      time.Duration
	IntroPause        time.Duration
	SampleRate        beep.SampleRate

	AnnotateTimeout  time.Duration
	SynthesisTimeout time.Duration

	// Workers bounds how many chapters are assembled at once.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		OutputDir:         "audiobook",
		AnnounceTitles:    true,
		MaxParagraphChars: book.DefaultMaxParagraphChars,
		ParagraphPause:    DefaultParagraphPause,
		ChapterPause:      DefaultChapterPause,
		IntroPause:        DefaultIntroPause,
		SampleRate:        audio.DefaultSampleRate,
		AnnotateTimeout:   30 * time.Second,
		SynthesisTimeout:  defaultCallTimeout,
		Workers:           1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxParagraphChars <= 0 {
		o.MaxParagraphChars = d.MaxParagraphChars
	}
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.AnnotateTimeout <= 0 {
		o.AnnotateTimeout = d.AnnotateTimeout
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = d.SynthesisTimeout
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	return o
}

func (o Options) Validate() error {
	if o.ParagraphPause < 0 || o.ChapterPause < 0 || o.IntroPause < 0 {
		return fmt.Errorf("pauses must not be negative")
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", o.Workers)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// BaseName derives the artifact prefix from a title and selection, e.g.
// "the_silent_sea_ch1-3_5".
func BaseName(title string, sel selection.Selection) string {
	name := unsafeChars.ReplaceAllString(strings.ToLower(title), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = defaultBaseName
	}
	if len(sel) > 0 {
		name += "_ch" + sel.String()
	}
	return name
}

func ChapterFileName(base string, number int) string {
	return fmt.Sprintf("%s_chapter_%02d.wav", base, number)
}

// ChapterRecordFileName names the coverage record kept next to a chapter file.
func ChapterRecordFileName(base string, number int) string {
	return fmt.Sprintf("%s_chapter_%02d.json", base, number)
}

func MasterFileName(base string) string {
	return base + ".wav"
}

func ManifestFileName(base string) string {
	return base + "_manifest.json"
}

func (o Options) path(name string) string {
	return filepath.Join(o.OutputDir, name)
}
