package voice

import "audionest/internal/domain/narrative"

// Modulation holds the multipliers applied on top of a voice. Tremble is an
// amplitude wobble in [0, 1]; zero disables it.
type Modulation struct {
	Speed   float64 `json:"speed"`
	Pitch   float64 `json:"pitch"`
	Volume  float64 `json:"volume"`
	Tremble float64 `json:"tremble,omitempty"`
}

// Neutral leaves the voice untouched.
var Neutral = Modulation{Speed: 1.0, Pitch: 1.0, Volume: 1.0}

// ModulationTable maps an emotion to its multipliers. Tables are treated as
// read-only once handed to a Resolver.
type ModulationTable map[narrative.Emotion]Modulation

// DefaultModulations returns a fresh copy of the built-in emotion table.
func DefaultModulations() ModulationTable {
	return ModulationTable{
		narrative.EmotionNeutral:    Neutral,
		narrative.EmotionExcited:    {Speed: 1.15, Pitch: 1.10, Volume: 1.10},
		narrative.EmotionJoyful:     {Speed: 1.10, Pitch: 1.05, Volume: 1.05},
		narrative.EmotionHappy:      {Speed: 1.05, Pitch: 1.05, Volume: 1.0},
		narrative.EmotionScared:     {Speed: 1.10, Pitch: 1.10, Volume: 0.85, Tremble: 0.3},
		narrative.EmotionTerrified:  {Speed: 1.20, Pitch: 1.15, Volume: 0.80, Tremble: 0.5},
		narrative.EmotionSad:        {Speed: 0.85, Pitch: 0.95, Volume: 0.80},
		narrative.EmotionAngry:      {Speed: 1.05, Pitch: 0.95, Volume: 1.20},
		narrative.EmotionMysterious: {Speed: 0.90, Pitch: 0.95, Volume: 0.90},
	}
}

// Lookup returns the modulation for e, or Neutral when e has no entry.
func (t ModulationTable) Lookup(e narrative.Emotion) Modulation {
	if m, ok := t[e]; ok {
		return m
	}
	return Neutral
}

func (t ModulationTable) clone() ModulationTable {
	out := make(ModulationTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
