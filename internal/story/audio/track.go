package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

type SegmentKind string

const (
	SegmentClip    SegmentKind = "clip"
	SegmentSilence SegmentKind = "silence"
)

// Segment records one append to a track, in samples.
type Segment struct {
	Kind   SegmentKind
	Label  string
	Start  int
	Length int
}

// Track is an append-only mono recording. Every append is recorded as a
// segment so the layout of clips and pauses can be inspected afterwards.
type Track struct {
	buffer   *beep.Buffer
	segments []Segment
}

func NewTrack(rate beep.SampleRate) *Track {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &Track{
		buffer: beep.NewBuffer(beep.Format{
			SampleRate:  rate,
			NumChannels: 1,
			Precision:   2,
		}),
	}
}

func (t *Track) Format() beep.Format {
	return t.buffer.Format()
}

func (t *Track) SampleRate() beep.SampleRate {
	return t.buffer.Format().SampleRate
}

// Len returns the number of samples in the track.
func (t *Track) Len() int {
	return t.buffer.Len()
}

func (t *Track) Duration() time.Duration {
	return t.SampleRate().D(t.Len())
}

func (t *Track) Empty() bool {
	return t.Len() == 0
}

// Segments returns a copy of the append ledger.
func (t *Track) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// AppendClip resamples the clip to the track rate if needed and appends it.
func (t *Track) AppendClip(label string, c Clip) error {
	if c.Empty() {
		return fmt.Errorf("appending %q: empty clip", label)
	}
	r, err := c.Resample(t.SampleRate())
	if err != nil {
		return fmt.Errorf("appending %q: %w", label, err)
	}

	t.append(SegmentClip, label, r.Streamer())
	return nil
}

// AppendSilence appends d of silence. Non-positive durations are ignored.
func (t *Track) AppendSilence(d time.Duration) {
	n := t.SampleRate().N(d)
	if n <= 0 {
		return
	}
	t.append(SegmentSilence, d.String(), beep.Silence(n))
}

// AppendTrack appends all samples of other, keeping its segment ledger.
func (t *Track) AppendTrack(other *Track) error {
	if other.Empty() {
		return nil
	}
	if other.SampleRate() != t.SampleRate() {
		return fmt.Errorf("sample rate mismatch: %d != %d", other.SampleRate(), t.SampleRate())
	}

	offset := t.Len()
	t.buffer.Append(other.buffer.Streamer(0, other.Len()))
	for _, seg := range other.segments {
		seg.Start += offset
		t.segments = append(t.segments, seg)
	}
	return nil
}

func (t *Track) append(kind SegmentKind, label string, s beep.Streamer) {
	start := t.Len()
	t.buffer.Append(s)
	t.segments = append(t.segments, Segment{
		Kind:   kind,
		Label:  label,
		Start:  start,
		Length: t.Len() - start,
	})
}

// CountSilences returns how many silence segments of exactly d the track holds.
func (t *Track) CountSilences(d time.Duration) int {
	want := t.SampleRate().N(d)
	count := 0
	for _, seg := range t.segments {
		if seg.Kind == SegmentSilence && seg.Length == want {
			count++
		}
	}
	return count
}

// Clip returns the track contents as a single clip.
func (t *Track) Clip() Clip {
	return Drain(t.buffer.Streamer(0, t.Len()), t.SampleRate())
}

// WriteWAV encodes the track as 16-bit mono PCM. The file is written next to
// path and renamed into place, so a failed write never leaves a truncated file.
func (t *Track) WriteWAV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".audionest-*.wav")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := wav.Encode(tmp, t.buffer.Streamer(0, t.Len()), t.Format()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// ReadTrack loads a WAV file into a new track at the given rate, as a single
// clip segment labelled with the file name.
func ReadTrack(path string, rate beep.SampleRate) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	t := NewTrack(rate)
	if clip.Empty() {
		return t, nil
	}
	if err := t.AppendClip(filepath.Base(path), clip); err != nil {
		return nil, err
	}
	return t, nil
}
