package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"audionest/internal/domain/book"
	"audionest/internal/domain/narrative"
	"audionest/internal/story/annotate"
	"audionest/internal/story/audio"
	"audionest/internal/story/tts"
	"audionest/internal/story/voice"
)

// State is the position of a chapter in its assembly.
type State string

const (
	StateIdle            State = "idle"
	StateTitleAudio      State = "title_audio"
	StateParagraphLoop   State = "paragraph_loop"
	StateChapterComplete State = "chapter_complete"
)

// Skip records a unit left out of the chapter. Paragraph is 1-based; zero is
// the title announcement.
type Skip struct {
	Paragraph int    `json:"paragraph"`
	Reason    string `json:"reason"`
}

// Unit is the decision taken for one paragraph.
type Unit struct {
	Paragraph   int                  `json:"paragraph"`
	Context     string               `json:"-"`
	Annotation  narrative.Annotation `json:"annotation"`
	Profile     voice.Profile        `json:"profile"`
	Tier        voice.Tier           `json:"tier"`
	Degraded    bool                 `json:"degraded,omitempty"`
	Synthesized bool                 `json:"synthesized"`
}

type ChapterResult struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  State  `json:"state"`

	Paragraphs         int    `json:"paragraphs"`
	Synthesized        int    `json:"synthesized"`
	Skipped            []Skip `json:"skipped,omitempty"`
	DefaultAnnotations int    `json:"defaultAnnotations"`
	DegradedVoices     int    `json:"degradedVoices"`
	WordCount          int    `json:"wordCount"`
	NarratedWordCount  int    `json:"narratedWordCount"`
	Flagged            bool   `json:"flagged,omitempty"`
	Units              []Unit `json:"units,omitempty"`

	FileName   string `json:"fileName,omitempty"`
	Restored   bool   `json:"restored,omitempty"`
	PersistErr error  `json:"-"`

	Track *audio.Track `json:"-"`
}

// SkippedParagraphs counts skipped paragraphs, leaving out the title.
func (r ChapterResult) SkippedParagraphs() int {
	n := 0
	for _, s := range r.Skipped {
		if s.Paragraph > 0 {
			n++
		}
	}
	return n
}

// ProcessChapter assembles one chapter track: optional title announcement,
// then every paragraph in order with a pause between appended units. Failed
// units are skipped and recorded. A cancelled ctx stops the loop between
// paragraphs and returns the partial result with ctx's error.
func (p *Pipeline) ProcessChapter(ctx context.Context, ch book.Chapter) (ChapterResult, error) {
	res := ChapterResult{
		Number:    ch.Number(),
		Title:     ch.Title,
		State:     StateIdle,
		WordCount: ch.WordCount(),
		Track:     audio.NewTrack(p.opts.SampleRate),
	}
	log := p.log.WithFields(logrus.Fields{
		"chapter": ch.Number(),
		"title":   ch.Title,
	})

	appended := false
	appendUnit := func(label string, clip audio.Clip) error {
		if appended {
			res.Track.AppendSilence(p.opts.ParagraphPause)
		}
		if err := res.Track.AppendClip(label, clip); err != nil {
			return err
		}
		appended = true
		return nil
	}

	if p.opts.AnnounceTitles && strings.TrimSpace(ch.Title) != "" {
		res.State = StateTitleAudio
		clip, err := p.synthesize(ctx, ch.Title, p.resolver.DefaultProfile())
		if err == nil {
			err = appendUnit("title", clip)
		}
		if err != nil {
			log.WithError(err).Warn("Skipping chapter title announcement")
			res.Skipped = append(res.Skipped, Skip{Paragraph: 0, Reason: err.Error()})
		}
	}

	res.State = StateParagraphLoop
	requests := annotate.Thread(ch.Paragraphs(p.opts.MaxParagraphChars))
	res.Paragraphs = len(requests)

	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		number := i + 1
		plog := log.WithField("paragraph", number)
		unit := Unit{Paragraph: number, Context: req.PreviousContext}

		annotation, err := p.annotate(ctx, req)
		if err != nil {
			plog.WithError(err).Warn("Annotation failed, using default narration")
			annotation = narrative.Default()
			res.DefaultAnnotations++
		}
		unit.Annotation = annotation

		resolution := p.resolver.Resolve(ctx, annotation)
		unit.Profile, unit.Tier, unit.Degraded = resolution.Profile, resolution.Tier, resolution.Degraded

		clip, err := p.synthesize(ctx, req.Text, unit.Profile)
		if errors.Is(err, tts.ErrVoiceUnavailable) && unit.Profile.VoiceID != p.resolver.Library().Default() {
			plog.WithField("voice", unit.Profile.VoiceID).Warn("Voice rejected by engine, retrying with default narrator")
			unit.Profile.VoiceID = p.resolver.Library().Default()
			unit.Degraded = true
			clip, err = p.synthesize(ctx, req.Text, unit.Profile)
		}
		if unit.Degraded {
			res.DegradedVoices++
		}

		if err == nil {
			clip = audio.ApplyModulation(clip, unit.Profile.Pitch, unit.Profile.Volume, unit.Profile.Tremble)
			err = appendUnit(fmt.Sprintf("paragraph %d", number), clip)
		}
		if err != nil {
			plog.WithError(err).Warn("Skipping paragraph")
			res.Skipped = append(res.Skipped, Skip{Paragraph: number, Reason: err.Error()})
		} else {
			unit.Synthesized = true
			res.Synthesized++
			res.NarratedWordCount += len(strings.Fields(req.Text))
		}

		res.Units = append(res.Units, unit)
	}

	res.Flagged = res.Paragraphs > 0 && res.Synthesized == 0
	if res.Flagged {
		log.Warn("Every paragraph failed, chapter track is empty")
	}
	res.State = StateChapterComplete

	return res, nil
}

// annotate bounds the call with the annotate timeout. The call itself is not
// interrupted by cancellation of ctx.
func (p *Pipeline) annotate(ctx context.Context, req annotate.Request) (narrative.Annotation, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.AnnotateTimeout)
	defer cancel()

	a, err := p.annotator.Annotate(callCtx, req)
	if err != nil {
		return narrative.Annotation{}, err
	}
	return a.Normalize(), nil
}

// synthesize returns the engine output joined into one clip. An empty result
// is a failure.
func (p *Pipeline) synthesize(ctx context.Context, text string, profile voice.Profile) (audio.Clip, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.SynthesisTimeout)
	defer cancel()

	clips, err := p.synth.Synthesize(callCtx, tts.Request{
		Text:    text,
		VoiceID: profile.VoiceID,
		Speed:   profile.Speed,
	})
	if err != nil {
		return audio.Clip{}, err
	}

	clip, err := audio.Concat(clips...)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
	}
	if clip.Empty() {
		return audio.Clip{}, fmt.Errorf("%w: engine returned no audio", tts.ErrSynthesisFailed)
	}
	return clip, nil
}
