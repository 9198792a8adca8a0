package tts

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// VoiceChecker answers voice availability from the engine's voice list, which
// is fetched once. Engines that cannot list voices are trusted with any voice.
type VoiceChecker struct {
	synth Synthesizer
	log   logrus.FieldLogger

	once   sync.Once
	voices map[string]struct{}
}

func NewVoiceChecker(synth Synthesizer, log logrus.FieldLogger) *VoiceChecker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VoiceChecker{synth: synth, log: log}
}

func (c *VoiceChecker) VoiceAvailable(ctx context.Context, voiceID string) bool {
	c.once.Do(func() { c.load(ctx) })

	if c.voices == nil {
		return true
	}

	id := strings.ToLower(voiceID)
	if _, ok := c.voices[id]; ok {
		return true
	}
	// espeak variants such as "en-us+f3" share the base voice
	if base, _, found := strings.Cut(id, "+"); found {
		_, ok := c.voices[base]
		return ok
	}
	return false
}

func (c *VoiceChecker) load(ctx context.Context) {
	voices, err := c.synth.Voices(ctx)
	if err != nil {
		c.log.WithError(err).WithField("engine", c.synth.Name()).
			Warn("Could not list voices, assuming all are available")
		return
	}
	if voices == nil {
		return
	}

	c.voices = make(map[string]struct{}, len(voices))
	for _, v := range voices {
		c.voices[strings.ToLower(v)] = struct{}{}
	}
}
