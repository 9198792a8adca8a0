package audio

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(rate beep.SampleRate, n int) Clip {
	c := Clip{SampleRate: rate, Samples: make([]float64, n)}
	for i := range c.Samples {
		c.Samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	return c
}

func TestTrack_AppendAndSegments(t *testing.T) {
	track := NewTrack(DefaultSampleRate)

	require.NoError(t, track.AppendClip("p1", tone(DefaultSampleRate, 2400)))
	track.AppendSilence(500 * time.Millisecond)
	require.NoError(t, track.AppendClip("p2", tone(DefaultSampleRate, 1200)))

	assert.Equal(t, 2400+12000+1200, track.Len())
	assert.Equal(t, 1, track.CountSilences(500*time.Millisecond))
	assert.Equal(t, 0, track.CountSilences(3*time.Second))

	segs := track.Segments()
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Kind: SegmentClip, Label: "p1", Start: 0, Length: 2400}, segs[0])
	assert.Equal(t, SegmentSilence, segs[1].Kind)
	assert.Equal(t, 2400, segs[1].Start)
	assert.Equal(t, 14400, segs[2].Start)
}

func TestTrack_AppendEmptyClipFails(t *testing.T) {
	track := NewTrack(DefaultSampleRate)
	assert.Error(t, track.AppendClip("empty", Clip{SampleRate: DefaultSampleRate}))
	assert.True(t, track.Empty())
}

func TestTrack_AppendSilenceIgnoresZero(t *testing.T) {
	track := NewTrack(DefaultSampleRate)
	track.AppendSilence(0)
	assert.Empty(t, track.Segments())
}

func TestTrack_AppendClipResamples(t *testing.T) {
	track := NewTrack(24000)
	require.NoError(t, track.AppendClip("low", tone(12000, 1200)))

	assert.InDelta(t, 2400, track.Len(), 50)
}

func TestTrack_AppendTrackShiftsSegments(t *testing.T) {
	chapter := NewTrack(DefaultSampleRate)
	require.NoError(t, chapter.AppendClip("a", tone(DefaultSampleRate, 100)))
	chapter.AppendSilence(10 * time.Millisecond)
	require.NoError(t, chapter.AppendClip("b", tone(DefaultSampleRate, 100)))

	master := NewTrack(DefaultSampleRate)
	master.AppendSilence(time.Second)
	require.NoError(t, master.AppendTrack(chapter))

	segs := master.Segments()
	require.Len(t, segs, 4)
	assert.Equal(t, DefaultSampleRate.N(time.Second), segs[1].Start)
	assert.Equal(t, "b", segs[3].Label)
	assert.Equal(t, master.Len(), segs[3].Start+segs[3].Length)
}

func TestTrack_AppendTrackRateMismatch(t *testing.T) {
	a := NewTrack(24000)
	b := NewTrack(16000)
	require.NoError(t, b.AppendClip("x", tone(16000, 10)))

	assert.Error(t, a.AppendTrack(b))
}

func TestTrack_WriteAndReadWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "chapter.wav")

	track := NewTrack(DefaultSampleRate)
	require.NoError(t, track.AppendClip("p1", tone(DefaultSampleRate, 4800)))
	track.AppendSilence(100 * time.Millisecond)
	require.NoError(t, track.WriteWAV(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must not be left behind")

	loaded, err := ReadTrack(path, DefaultSampleRate)
	require.NoError(t, err)
	assert.Equal(t, track.Len(), loaded.Len())
	assert.Equal(t, track.Duration(), loaded.Duration())
}

func TestTrack_WriteEmptyTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")

	require.NoError(t, NewTrack(DefaultSampleRate).WriteWAV(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 44, info.Size(), "header only")
}

func TestDecodeWAV(t *testing.T) {
	src := NewTrack(16000)
	require.NoError(t, src.AppendClip("x", tone(16000, 1600)))

	path := filepath.Join(t.TempDir(), "x.wav")
	require.NoError(t, src.WriteWAV(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	clip, err := DecodeWAV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, beep.SampleRate(16000), clip.SampleRate)
	assert.Len(t, clip.Samples, 1600)
	assert.Equal(t, 100*time.Millisecond, clip.Duration())

	_, err = DecodeWAV(bytes.NewReader([]byte("not a wav file")))
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	out, err := Concat(tone(24000, 10), tone(24000, 5))
	require.NoError(t, err)
	assert.Len(t, out.Samples, 15)

	empty, err := Concat()
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestApplyModulationIsIdentity(t *testing.T) {
	c := tone(24000, 10)
	assert.Equal(t, c, ApplyModulation(c, 1.2, 0.8, 0.5))
}
