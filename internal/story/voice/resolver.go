package voice

import (
	"context"

	"github.com/sirupsen/logrus"

	"audionest/internal/domain/narrative"
)

// Profile is the concrete synthesis setting derived from an annotation.
type Profile struct {
	VoiceID string `json:"voice_id"`
	Modulation
}

// Checker reports whether a synthesis engine can use a voice.
type Checker interface {
	VoiceAvailable(ctx context.Context, voiceID string) bool
}

// Resolution is the outcome of resolving an annotation. Degraded is set when
// the chosen voice was unavailable and the default voice was used instead.
type Resolution struct {
	Profile  Profile
	Key      string
	Tier     Tier
	Degraded bool
}

type Resolver struct {
	library     Library
	modulations ModulationTable
	checker     Checker
	log         logrus.FieldLogger
}

type Option func(*Resolver)

func WithChecker(c Checker) Option {
	return func(r *Resolver) { r.checker = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Resolver) { r.log = l }
}

// NewResolver copies the modulation table; a nil table uses DefaultModulations.
func NewResolver(library Library, modulations ModulationTable, opts ...Option) *Resolver {
	if modulations == nil {
		modulations = DefaultModulations()
	}

	r := &Resolver{
		library:     library,
		modulations: modulations.clone(),
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Library() Library {
	return r.library
}

// Profile is the pure mapping from character and emotion to a profile. It
// does not consult voice availability.
func (r *Resolver) Profile(character string, emotion narrative.Emotion) (Profile, string, Tier) {
	voiceID, key, tier := r.library.Lookup(character, emotion)
	return Profile{
		VoiceID:    voiceID,
		Modulation: r.modulations.Lookup(emotion),
	}, key, tier
}

// DefaultProfile is the default narrator with neutral modulation.
func (r *Resolver) DefaultProfile() Profile {
	return Profile{VoiceID: r.library.Default(), Modulation: Neutral}
}

// Resolve maps an annotation to a profile, swapping in the default voice when
// the checker reports the resolved one as unavailable.
func (r *Resolver) Resolve(ctx context.Context, a narrative.Annotation) Resolution {
	profile, key, tier := r.Profile(a.Character, a.Emotion)
	res := Resolution{Profile: profile, Key: key, Tier: tier}

	if r.checker == nil || profile.VoiceID == r.library.Default() {
		return res
	}
	if r.checker.VoiceAvailable(ctx, profile.VoiceID) {
		return res
	}

	r.log.WithFields(logrus.Fields{
		"voice":     profile.VoiceID,
		"key":       key,
		"character": a.Character,
		"emotion":   a.Emotion,
		"fallback":  r.library.Default(),
	}).Warn("Voice unavailable, using default narrator")

	res.Profile.VoiceID = r.library.Default()
	res.Degraded = true
	return res
}
