package nest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"audionest/internal/cli/scheme/colours"
	"audionest/internal/config"
	"audionest/internal/domain/book"
	"audionest/internal/domain/selection"
	"audionest/internal/story/annotate"
	"audionest/internal/story/audio/player"
	"audionest/internal/story/pipeline"
	"audionest/internal/story/source"
	"audionest/internal/story/tts"
	"audionest/internal/story/voice"
)

// AudioNest main application structure. Its methods are the cobra handlers.
type AudioNest struct {
	cfg *config.Config
	log logrus.FieldLogger
	out io.Writer

	ctx    context.Context
	Cancel context.CancelFunc

	mu sync.Mutex
}

func NewAudioNest() *AudioNest {
	ctx, cancel := context.WithCancel(context.Background())
	return &AudioNest{
		log:    logrus.StandardLogger(),
		out:    color.Output,
		ctx:    ctx,
		Cancel: cancel,
	}
}

// Configure installs the loaded configuration. It runs before every command.
func (an *AudioNest) Configure(cfg *config.Config) {
	an.cfg = cfg
}

func (an *AudioNest) Context() context.Context {
	return an.ctx
}

func (an *AudioNest) ShowWelcome(cmd *cobra.Command, args []string) {
	fmt.Fprintln(an.out)
	colours.Title.Fprintln(an.out, "🎧 Welcome to AudioNest! 🎧")
	fmt.Fprintln(an.out)
	colours.Info.Fprintln(an.out, "📚 Available commands:")
	fmt.Fprintln(an.out, "  • audionest convert <book>          - Narrate a book into WAV files")
	fmt.Fprintln(an.out, "  • audionest chapters <book>         - Show detected chapters")
	fmt.Fprintln(an.out, "  • audionest select <book> <chapters> - Preview a chapter selection")
	fmt.Fprintln(an.out, "  • audionest voices                  - List voices of the TTS engine")
	fmt.Fprintln(an.out, "  • audionest play <file.wav>         - Listen to an output file")
	fmt.Fprintln(an.out, "  • audionest cache status|clear      - Manage download and TTS caches")
	fmt.Fprintln(an.out)
	colours.Muted.Fprintln(an.out, "A book is a text file, an http(s) URL or gutenberg:<id>.")
}

// ConvertRequest carries the per-run choices that are not configuration.
type ConvertRequest struct {
	Chapters string
	BaseName string
	Resume   bool
}

func (an *AudioNest) Convert(cmd *cobra.Command, args []string) error {
	chapters, _ := cmd.Flags().GetString("chapters")
	baseName, _ := cmd.Flags().GetString("base-name")
	resume, _ := cmd.Flags().GetBool("resume")

	result, err := an.ConvertBook(an.ctx, args[0], ConvertRequest{
		Chapters: chapters,
		BaseName: baseName,
		Resume:   resume,
	})
	if result != nil {
		an.printReport(result)
	}
	if errors.Is(err, context.Canceled) {
		colours.Warning.Fprintln(an.out, "⏹️  Stopped. Finished chapter files were kept; rerun with --resume to continue.")
		return nil
	}
	return err
}

// ConvertBook loads, structures and narrates the selected chapters of the
// book at location.
func (an *AudioNest) ConvertBook(ctx context.Context, location string, req ConvertRequest) (*pipeline.Result, error) {
	b, err := an.loadBook(ctx, location)
	if err != nil {
		return nil, err
	}

	expr := req.Chapters
	if strings.TrimSpace(expr) == "" {
		expr = "all"
	}
	sel := selection.FromString(len(b.Chapters), expr)
	if sel.Empty() {
		return nil, fmt.Errorf("%w: %q matches none of the %d chapters", pipeline.ErrNothingToProcess, expr, len(b.Chapters))
	}

	synth, err := an.newSynthesizer()
	if err != nil {
		return nil, err
	}
	if closer, ok := synth.(io.Closer); ok {
		defer closer.Close()
	}

	annotator, err := an.newAnnotator()
	if err != nil {
		return nil, err
	}

	resolver, err := an.newResolver(synth)
	if err != nil {
		return nil, err
	}

	opts := an.pipelineOptions()
	opts.BaseName = req.BaseName
	opts.Resume = req.Resume

	p, err := pipeline.New(annotator, synth, resolver, opts,
		pipeline.WithLogger(an.log),
		pipeline.WithProgress(an.printProgress),
	)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(an.out)
	colours.Title.Fprintf(an.out, "📖 %s", b.Title)
	fmt.Fprint(an.out, " by ")
	colours.Author.Fprintln(an.out, b.Author)
	colours.Info.Fprintf(an.out, "🎙️  Engine: %s | Chapters: %s of %d\n", synth.Name(), sel.String(), len(b.Chapters))
	fmt.Fprintln(an.out)

	return p.Run(ctx, b, sel)
}

func (an *AudioNest) ListChapters(cmd *cobra.Command, args []string) error {
	b, err := an.loadBook(an.ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(an.out)
	colours.Title.Fprintf(an.out, "📖 %s", b.Title)
	fmt.Fprint(an.out, " by ")
	colours.Author.Fprintln(an.out, b.Author)
	fmt.Fprintln(an.out)

	maxChars := an.pipelineOptions().MaxParagraphChars
	paragraphs := 0
	for _, ch := range b.Chapters {
		n := len(ch.Paragraphs(maxChars))
		paragraphs += n
		fmt.Fprintf(an.out, "  %3d. ", ch.Number())
		colours.Chapter.Fprint(an.out, ch.Title)
		colours.Muted.Fprintf(an.out, "  (%d words, %d paragraphs)\n", ch.WordCount(), n)
	}

	fmt.Fprintln(an.out)
	colours.Success.Fprintf(an.out, "✨ %d chapters, %d paragraphs, %d words\n", len(b.Chapters), paragraphs, b.WordCount())
	return nil
}

func (an *AudioNest) ShowSelection(cmd *cobra.Command, args []string) error {
	b, err := an.loadBook(an.ctx, args[0])
	if err != nil {
		return err
	}

	sel := selection.FromString(len(b.Chapters), args[1])
	if sel.Empty() {
		colours.Warning.Fprintf(an.out, "🔍 %q selects none of the %d chapters\n", args[1], len(b.Chapters))
		return nil
	}

	colours.Info.Fprintf(an.out, "Selected %d of %d chapters: %s\n", len(sel), len(b.Chapters), sel.String())
	for _, n := range sel {
		ch, _ := b.Chapter(n)
		fmt.Fprintf(an.out, "  %3d. %s\n", n, ch.Title)
	}
	colours.Muted.Fprintf(an.out, "Output base name: %s\n", pipeline.BaseName(b.Title, sel))
	return nil
}

func (an *AudioNest) ListVoices(cmd *cobra.Command, args []string) error {
	synth, err := an.newSynthesizer()
	if err != nil {
		return err
	}
	if closer, ok := synth.(io.Closer); ok {
		defer closer.Close()
	}

	lib, err := an.voiceLibrary(synth)
	if err != nil {
		return err
	}

	fmt.Fprintln(an.out)
	colours.Title.Fprintf(an.out, "🎭 Voice library (%s)\n", synth.Name())
	for _, key := range lib.Keys() {
		id, _ := lib.Voice(key)
		fmt.Fprintf(an.out, "  %-24s ", key)
		colours.Voice.Fprintln(an.out, id)
	}
	colours.Muted.Fprintf(an.out, "  default narrator: %s\n", lib.Default())

	fmt.Fprintln(an.out)
	colours.Title.Fprintln(an.out, "🎤 Engine voices")

	if d, ok := synth.(tts.Describer); ok {
		infos, err := d.VoiceInfo(an.ctx)
		if err != nil {
			return fmt.Errorf("failed to list voices: %w", err)
		}
		for _, v := range infos {
			fmt.Fprintf(an.out, "  %-28s %-8s %s\n", v.Name, v.LanguageCode, v.Gender)
		}
		return nil
	}

	voices, err := synth.Voices(an.ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}
	if voices == nil {
		colours.Muted.Fprintln(an.out, "  this engine accepts any voice id")
		return nil
	}
	for _, v := range voices {
		fmt.Fprintf(an.out, "  %s\n", v)
	}
	return nil
}

func (an *AudioNest) Play(cmd *cobra.Command, args []string) error {
	colours.Success.Fprintf(an.out, "🎵 Playing %s\n", args[0])
	fmt.Fprintln(an.out, "💡 Press Ctrl+C to stop anytime")

	err := player.Play(an.ctx, args[0])
	if errors.Is(err, context.Canceled) {
		colours.Warning.Fprintln(an.out, "⏹️  Stopped")
		return nil
	}
	if err != nil {
		return err
	}
	colours.Success.Fprintln(an.out, "✅ Finished")
	return nil
}

// ShowCacheStatus displays information about the download and TTS caches
func (an *AudioNest) ShowCacheStatus(cmd *cobra.Command, args []string) error {
	colours.Title.Fprintln(an.out, "📊 Cache Status")

	info, err := an.newLoader().CacheInfo()
	if err != nil {
		return err
	}
	colours.Info.Fprintf(an.out, "📁 Downloads: %s\n", info.Dir)
	if !info.Exists || info.Entries == 0 {
		colours.Warning.Fprintln(an.out, "   empty")
	} else {
		fmt.Fprintf(an.out, "   %d documents (%d fresh), %d bytes, last download %s\n",
			info.Entries, info.FreshEntries, info.Size, info.LastModified.Format("2006-01-02 15:04:05"))
		colours.Muted.Fprintf(an.out, "   max age %.1f hours\n", info.MaxAge.Hours())
	}

	synth, err := an.newSynthesizer()
	if err != nil {
		colours.Warning.Fprintf(an.out, "⚠️  TTS engine unavailable: %v\n", err)
		return nil
	}
	if closer, ok := synth.(io.Closer); ok {
		defer closer.Close()
	}

	cacheable, ok := synth.(tts.Cacheable)
	if !ok {
		colours.Muted.Fprintf(an.out, "🎙️  %s engine keeps no audio cache\n", synth.Name())
		return nil
	}
	stats, err := cacheable.CacheStats()
	if err != nil {
		return err
	}
	colours.Info.Fprintf(an.out, "🎙️  %s audio cache:\n", synth.Name())
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(an.out, "   %s: %v\n", k, stats[k])
	}
	return nil
}

func (an *AudioNest) ClearCache(cmd *cobra.Command, args []string) error {
	if err := an.newLoader().ClearCache(); err != nil {
		return err
	}
	colours.Success.Fprintln(an.out, "✅ Download cache cleared")

	synth, err := an.newSynthesizer()
	if err != nil {
		return nil
	}
	if closer, ok := synth.(io.Closer); ok {
		defer closer.Close()
	}
	if cacheable, ok := synth.(tts.Cacheable); ok {
		if err := cacheable.ClearCache(); err != nil {
			return fmt.Errorf("failed to clear %s cache: %w", synth.Name(), err)
		}
		colours.Success.Fprintf(an.out, "✅ %s audio cache cleared\n", synth.Name())
	}
	return nil
}

func (an *AudioNest) config() *config.Config {
	if an.cfg == nil {
		config.SetDefaults()
		cfg, err := config.Load()
		if err != nil {
			an.log.WithError(err).Fatal("Invalid configuration")
		}
		an.cfg = cfg
	}
	return an.cfg
}

func (an *AudioNest) newLoader() *source.Loader {
	cfg := an.config()
	return source.NewLoader(cfg.Source.CacheDir, cfg.Source.MaxAge, source.WithLogger(an.log))
}

// loadBook fetches the text at location and structures it. Catalog metadata
// fills in a title or author the text itself does not reveal.
func (an *AudioNest) loadBook(ctx context.Context, location string) (book.Book, error) {
	doc, err := an.newLoader().Load(ctx, location)
	if err != nil {
		return book.Book{}, err
	}
	if doc.Stale {
		colours.Warning.Fprintln(an.out, "⚠️  Using a cached copy, the download failed")
	}

	b := book.Structure(doc.Text)
	if b.Title == book.UnknownTitle && doc.Title != "" {
		b.Title = doc.Title
	}
	if b.Author == book.UnknownAuthor && doc.Author != "" {
		b.Author = doc.Author
	}
	return b, nil
}

func (an *AudioNest) newSynthesizer() (tts.Synthesizer, error) {
	cfg := an.config()
	return tts.NewEngine(tts.Config{
		Type:           cfg.TTS.Type,
		CachePath:      cfg.TTS.CachePath,
		Voice:          cfg.Voice.Default,
		Language:       cfg.TTS.Google.LanguageCode,
		Encoding:       cfg.TTS.Google.Encoding,
		WordsPerMinute: cfg.TTS.ESpeak.WordsPerMinute,
	})
}

func (an *AudioNest) newAnnotator() (annotate.Annotator, error) {
	return annotate.New(an.config().Annotator.Type, an.chatConfig(), an.log)
}

// chatConfig gives each request its share of the paragraph's annotation
// budget, which pipelineOptions applies to the whole call.
func (an *AudioNest) chatConfig() annotate.ChatConfig {
	cfg := an.config().Annotator
	return annotate.ChatConfig{
		URL:               cfg.URL,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Timeout:           cfg.PerAttempt(),
		Retries:           cfg.Retries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// voiceLibrary starts from the engine's built-in library and applies the
// configured default and per-key overrides.
func (an *AudioNest) voiceLibrary(synth tts.Synthesizer) (voice.Library, error) {
	cfg := an.config().Voice
	builtin := voice.BuiltinLibrary(synth.Name())

	voices := make(map[string]string)
	for _, key := range builtin.Keys() {
		voices[key], _ = builtin.Voice(key)
	}
	for key, id := range cfg.Library {
		voices[key] = id
	}

	def := cfg.Default
	if def == "" {
		def = builtin.Default()
	}
	return voice.NewLibrary(def, voices)
}

func (an *AudioNest) newResolver(synth tts.Synthesizer) (*voice.Resolver, error) {
	lib, err := an.voiceLibrary(synth)
	if err != nil {
		return nil, err
	}
	return voice.NewResolver(lib, voice.DefaultModulations(),
		voice.WithChecker(tts.NewVoiceChecker(synth, an.log)),
		voice.WithLogger(an.log),
	), nil
}

func (an *AudioNest) pipelineOptions() pipeline.Options {
	cfg := an.config()
	opts := pipeline.DefaultOptions()

	opts.OutputDir = cfg.Pipeline.OutputDir
	opts.IncludeIntro = cfg.Pipeline.IncludeIntro
	opts.AnnounceTitles = cfg.Pipeline.AnnounceTitles
	opts.MaxParagraphChars = cfg.Pipeline.MaxParagraphChars
	opts.ParagraphPause = cfg.Pipeline.ParagraphPause
	opts.ChapterPause = cfg.Pipeline.ChapterPause
	opts.IntroPause = cfg.Pipeline.IntroPause
	opts.SampleRate = beep.SampleRate(cfg.Pipeline.SampleRate)
	opts.Workers = cfg.Pipeline.Workers
	opts.AnnotateTimeout = cfg.Annotator.Timeout
	opts.SynthesisTimeout = cfg.TTS.Timeout
	return opts
}

func (an *AudioNest) printProgress(ch pipeline.ChapterResult) {
	an.mu.Lock()
	defer an.mu.Unlock()

	status := colours.Status(ch.Flagged, ch.SkippedParagraphs())
	status.Fprint(an.out, "  ● ")
	fmt.Fprintf(an.out, "Chapter %d ", ch.Number)
	colours.Chapter.Fprint(an.out, ch.Title)
	if ch.Restored {
		colours.Muted.Fprintln(an.out, "  (resumed from disk)")
		return
	}
	colours.Muted.Fprintf(an.out, "  %d/%d paragraphs\n", ch.Synthesized, ch.Paragraphs)
}

func (an *AudioNest) printReport(res *pipeline.Result) {
	fmt.Fprintln(an.out)
	colours.Title.Fprintln(an.out, "📋 Run report")
	colours.Muted.Fprintf(an.out, "   run %s, %s\n", res.RunID, res.Elapsed.Round(time.Millisecond))

	for _, ch := range res.Chapters {
		status := colours.Status(ch.Flagged, ch.SkippedParagraphs())
		status.Fprintf(an.out, "  Chapter %d: %s\n", ch.Number, ch.Title)
		fmt.Fprintf(an.out, "     paragraphs %d/%d, words %d/%d",
			ch.Synthesized, ch.Paragraphs, ch.NarratedWordCount, ch.WordCount)
		if ch.DefaultAnnotations > 0 {
			fmt.Fprintf(an.out, ", default annotations %d", ch.DefaultAnnotations)
		}
		if ch.DegradedVoices > 0 {
			fmt.Fprintf(an.out, ", fallback voices %d", ch.DegradedVoices)
		}
		fmt.Fprintln(an.out)

		for _, s := range ch.Skipped {
			what := fmt.Sprintf("paragraph %d", s.Paragraph)
			if s.Paragraph == 0 {
				what = "title"
			}
			colours.Warning.Fprintf(an.out, "     skipped %s: %s\n", what, s.Reason)
		}
		if ch.Flagged {
			colours.Error.Fprintln(an.out, "     every paragraph failed, the chapter is silent")
		}
		if ch.PersistErr != nil {
			colours.Error.Fprintf(an.out, "     %v\n", ch.PersistErr)
		} else if ch.FileName != "" {
			colours.Muted.Fprintf(an.out, "     %s\n", ch.FileName)
		}
	}

	if res.IntroSkipped {
		colours.Warning.Fprintln(an.out, "  introduction skipped")
	}
	if res.MasterFile != "" {
		colours.Success.Fprintf(an.out, "🎧 Master: %s (%s)\n", res.MasterFile, res.Master.Duration().Round(time.Second))
	}
	if res.ManifestFile != "" {
		colours.Success.Fprintf(an.out, "🗂️  Manifest: %s\n", res.ManifestFile)
	}
	if err := res.Err(); err != nil {
		colours.Error.Fprintf(an.out, "❌ Some files could not be written: %v\n", err)
	}
}
