package audio

import (
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// DecodeWAV reads a complete WAV stream into a mono clip at its native rate.
func DecodeWAV(r io.Reader) (Clip, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return Clip{}, fmt.Errorf("wav decode: %w", err)
	}
	defer streamer.Close()

	return drainChecked(streamer, format)
}

// DecodeMP3 reads a complete MP3 stream into a mono clip at its native rate.
func DecodeMP3(rc io.ReadCloser) (Clip, error) {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		return Clip{}, fmt.Errorf("mp3 decode: %w", err)
	}
	defer streamer.Close()

	return drainChecked(streamer, format)
}

func drainChecked(s beep.StreamSeekCloser, format beep.Format) (Clip, error) {
	clip := Drain(s, format.SampleRate)
	if err := s.Err(); err != nil {
		return Clip{}, err
	}
	return clip, nil
}
