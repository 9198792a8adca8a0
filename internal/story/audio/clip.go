package audio

import (
	"fmt"
	"time"

	"github.com/faiface/beep"
)

// DefaultSampleRate is the rate every track is assembled at unless configured
// otherwise.
const DefaultSampleRate beep.SampleRate = 24000

// resampleQuality is passed to beep.Resample.
const resampleQuality = 4

// Clip is a mono buffer of samples in [-1, 1].
type Clip struct {
	SampleRate beep.SampleRate
	Samples    []float64
}

func (c Clip) Empty() bool {
	return len(c.Samples) == 0
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return c.SampleRate.D(len(c.Samples))
}

// Streamer plays the clip once on both channels.
func (c Clip) Streamer() beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= len(c.Samples) {
			return 0, false
		}
		for n < len(samples) && pos < len(c.Samples) {
			samples[n][0] = c.Samples[pos]
			samples[n][1] = c.Samples[pos]
			n++
			pos++
		}
		return n, true
	})
}

// Resample converts the clip to the target rate.
func (c Clip) Resample(rate beep.SampleRate) (Clip, error) {
	if c.SampleRate == rate {
		return c, nil
	}
	if c.SampleRate <= 0 || rate <= 0 {
		return Clip{}, fmt.Errorf("invalid sample rate %d -> %d", c.SampleRate, rate)
	}
	if c.Empty() {
		return Clip{SampleRate: rate}, nil
	}

	resampled := beep.Resample(resampleQuality, c.SampleRate, rate, c.Streamer())
	return Drain(resampled, rate), nil
}

// Drain reads a streamer to the end and folds it down to mono.
func Drain(s beep.Streamer, rate beep.SampleRate) Clip {
	clip := Clip{SampleRate: rate}
	buf := make([][2]float64, 512)

	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			clip.Samples = append(clip.Samples, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	return clip
}

// Concat joins clips that share a sample rate, resampling the rest to the rate
// of the first clip.
func Concat(clips ...Clip) (Clip, error) {
	if len(clips) == 0 {
		return Clip{}, nil
	}

	out := Clip{SampleRate: clips[0].SampleRate}
	for _, c := range clips {
		r, err := c.Resample(out.SampleRate)
		if err != nil {
			return Clip{}, err
		}
		out.Samples = append(out.Samples, r.Samples...)
	}
	return out, nil
}

// ApplyModulation is where pitch, volume and tremble will be applied to
// synthesized samples. It currently returns the clip unchanged.
func ApplyModulation(c Clip, pitch, volume, tremble float64) Clip {
	return c
}
