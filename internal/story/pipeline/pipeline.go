package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"audionest/internal/domain/book"
	"audionest/internal/domain/selection"
	"audionest/internal/story/annotate"
	"audionest/internal/story/audio"
	"audionest/internal/story/manifest"
	"audionest/internal/story/tts"
	"audionest/internal/story/voice"
)

var (
	// ErrNothingToProcess is returned when a selection resolves to no chapters.
	ErrNothingToProcess = errors.New("nothing to process")

	// ErrPersistence wraps failures to write an artifact. Only that artifact
	// is lost.
	ErrPersistence = errors.New("persistence failed")
)

type Pipeline struct {
	annotator annotate.Annotator
	synth     tts.Synthesizer
	resolver  *voice.Resolver
	opts      Options
	log       logrus.FieldLogger
	progress  func(ChapterResult)
}

type Option func(*Pipeline)

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithProgress registers a callback run after each chapter is persisted. It
// may be called from several goroutines when Workers > 1.
func WithProgress(fn func(ChapterResult)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

func New(annotator annotate.Annotator, synth tts.Synthesizer, resolver *voice.Resolver, opts Options, options ...Option) (*Pipeline, error) {
	if annotator == nil || synth == nil || resolver == nil {
		return nil, errors.New("pipeline needs an annotator, a synthesizer and a voice resolver")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		annotator: annotator,
		synth:     synth,
		resolver:  resolver,
		opts:      opts.withDefaults(),
		log:       logrus.StandardLogger(),
	}
	for _, o := range options {
		o(p)
	}
	return p, nil
}

func (p *Pipeline) Options() Options {
	return p.opts
}

// Result describes a run. On cancellation it holds the chapters finished so
// far and no master or manifest.
type Result struct {
	RunID     string
	BaseName  string
	Selection selection.Selection
	Chapters  []ChapterResult

	Master       *audio.Track
	MasterFile   string
	ManifestFile string
	IntroSkipped bool

	MasterErr   error
	ManifestErr error

	Elapsed time.Duration
}

// Err joins every persistence error of the run.
func (r *Result) Err() error {
	errs := []error{r.MasterErr, r.ManifestErr}
	for _, ch := range r.Chapters {
		errs = append(errs, ch.PersistErr)
	}
	return errors.Join(errs...)
}

// Run assembles the selected chapters of b, writes one file per chapter, the
// master track and the manifest into the output directory.
func (p *Pipeline) Run(ctx context.Context, b book.Book, sel selection.Selection) (*Result, error) {
	start := time.Now()
	sel = selection.FromInts(len(b.Chapters), sel)
	if sel.Empty() {
		return nil, ErrNothingToProcess
	}

	base := p.opts.BaseName
	if base == "" {
		base = BaseName(b.Title, sel)
	}

	result := &Result{
		RunID:     uuid.NewString(),
		BaseName:  base,
		Selection: sel,
	}
	log := p.log.WithFields(logrus.Fields{
		"run":       result.RunID,
		"book":      b.Title,
		"selection": sel.String(),
	})
	log.WithField("chapters", len(sel)).Info("Starting assembly")

	chapters, err := p.processSelection(ctx, log, b, sel, base)
	result.Chapters = chapters
	if err != nil {
		log.WithError(err).Warn("Assembly interrupted, chapter files written so far are kept")
		result.Elapsed = time.Since(start)
		return result, err
	}

	result.Master = p.assembleMaster(ctx, log, b, chapters, result)

	masterName := MasterFileName(base)
	if err := result.Master.WriteWAV(p.opts.path(masterName)); err != nil {
		result.MasterErr = fmt.Errorf("%w: master track: %w", ErrPersistence, err)
		log.WithError(err).Error("Failed to write master track")
	} else {
		result.MasterFile = masterName
	}

	coverage := make(map[int]manifest.Coverage, len(chapters))
	for _, ch := range chapters {
		coverage[ch.Number] = manifest.Coverage{
			FileName:          ch.FileName,
			NarratedWordCount: ch.NarratedWordCount,
			SkippedParagraphs: ch.SkippedParagraphs(),
			Flagged:           ch.Flagged,
		}
	}

	m := manifest.Build(result.RunID, b, sel, coverage, result.MasterFile)
	manifestName := ManifestFileName(base)
	if err := m.Write(p.opts.path(manifestName)); err != nil {
		result.ManifestErr = fmt.Errorf("%w: manifest: %w", ErrPersistence, err)
		log.WithError(err).Error("Failed to write manifest")
	} else {
		result.ManifestFile = manifestName
	}

	result.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"duration": result.Master.Duration().Round(time.Second),
		"elapsed":  result.Elapsed.Round(time.Millisecond),
	}).Info("Assembly complete")

	return result, nil
}

// processSelection assembles and persists every selected chapter, at most
// Workers at a time. Results keep selection order.
func (p *Pipeline) processSelection(ctx context.Context, log logrus.FieldLogger, b book.Book, sel selection.Selection, base string) ([]ChapterResult, error) {
	results := make([]ChapterResult, len(sel))
	done := make([]bool, len(sel))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	for i, number := range sel {
		ch, _ := b.Chapter(number)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := p.chapter(ctx, log, ch, base)
			if err != nil {
				return err
			}
			results[i] = res
			done[i] = true

			if p.progress != nil {
				p.progress(res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		finished := make([]ChapterResult, 0, len(sel))
		for i := range results {
			if done[i] {
				finished = append(finished, results[i])
			}
		}
		return finished, err
	}
	return results, nil
}

// chapter restores a chapter file when resuming, otherwise assembles the
// chapter and writes its file and coverage record before anything else sees
// it.
func (p *Pipeline) chapter(ctx context.Context, log logrus.FieldLogger, ch book.Chapter, base string) (ChapterResult, error) {
	name := ChapterFileName(base, ch.Number())
	path := p.opts.path(name)
	recordPath := p.opts.path(ChapterRecordFileName(base, ch.Number()))

	if p.opts.Resume {
		if res, ok := p.restore(log, ch, path, recordPath); ok {
			res.FileName = name
			return res, nil
		}
	}

	res, err := p.ProcessChapter(ctx, ch)
	if err != nil {
		return res, err
	}

	if err := os.Remove(recordPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("chapter", ch.Number()).Warn("Failed to remove stale chapter record")
	}
	if err := res.Track.WriteWAV(path); err != nil {
		res.PersistErr = fmt.Errorf("%w: chapter %d: %w", ErrPersistence, ch.Number(), err)
		log.WithError(err).WithField("chapter", ch.Number()).Error("Failed to write chapter file")
		return res, nil
	}
	res.FileName = name

	if err := writeRecord(recordPath, recordOf(res)); err != nil {
		log.WithError(err).WithField("chapter", ch.Number()).Warn("Failed to write chapter record, the chapter will not be resumable")
	}

	log.WithFields(logrus.Fields{
		"chapter":     ch.Number(),
		"file":        name,
		"synthesized": res.Synthesized,
		"skipped":     len(res.Skipped),
	}).Info("Chapter complete")
	return res, nil
}

// restore reuses a chapter file together with the coverage recorded when it
// was written. Flagged or empty chapters, and files without a matching record,
// are synthesized again.
func (p *Pipeline) restore(log logrus.FieldLogger, ch book.Chapter, path, recordPath string) (ChapterResult, bool) {
	if _, err := os.Stat(path); err != nil {
		return ChapterResult{}, false
	}
	log = log.WithFields(logrus.Fields{"chapter": ch.Number(), "file": path})

	record, err := readRecord(recordPath)
	if err != nil {
		log.WithError(err).Info("No coverage record for existing chapter file, re-synthesizing")
		return ChapterResult{}, false
	}
	if record.Flagged {
		log.Info("Existing chapter file was flagged, re-synthesizing")
		return ChapterResult{}, false
	}
	if paragraphs := len(ch.Paragraphs(p.opts.MaxParagraphChars)); record.Paragraphs != paragraphs {
		log.WithFields(logrus.Fields{
			"recorded": record.Paragraphs,
			"current":  paragraphs,
		}).Info("Chapter changed since its file was written, re-synthesizing")
		return ChapterResult{}, false
	}

	track, err := audio.ReadTrack(path, p.opts.SampleRate)
	if err != nil {
		log.WithError(err).Warn("Existing chapter file unreadable, re-synthesizing")
		return ChapterResult{}, false
	}
	if track.Empty() && record.Paragraphs > 0 {
		log.Info("Existing chapter file is empty, re-synthesizing")
		return ChapterResult{}, false
	}

	log.Info("Resuming from existing chapter file")
	res := ChapterResult{
		Number:   ch.Number(),
		Title:    ch.Title,
		State:    StateChapterComplete,
		Restored: true,
		Track:    track,
	}
	record.apply(&res)
	return res, true
}

// assembleMaster joins the optional introduction and the chapter tracks in
// selection order.
func (p *Pipeline) assembleMaster(ctx context.Context, log logrus.FieldLogger, b book.Book, chapters []ChapterResult, result *Result) *audio.Track {
	master := audio.NewTrack(p.opts.SampleRate)

	if p.opts.IncludeIntro {
		intro := fmt.Sprintf("%s, by %s.", b.Title, b.Author)
		clip, err := p.synthesize(ctx, intro, p.resolver.DefaultProfile())
		if err == nil {
			err = master.AppendClip("introduction", clip)
		}
		if err != nil {
			log.WithError(err).Warn("Skipping book introduction")
			result.IntroSkipped = true
		} else {
			master.AppendSilence(p.opts.IntroPause)
		}
	}

	for i, ch := range chapters {
		if i > 0 {
			master.AppendSilence(p.opts.ChapterPause)
		}
		if ch.Track == nil {
			continue
		}
		if err := master.AppendTrack(ch.Track); err != nil {
			log.WithError(err).WithField("chapter", ch.Number).Error("Failed to append chapter to master track")
		}
	}

	return master
}
