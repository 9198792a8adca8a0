package annotate

import (
	"context"
	"regexp"
	"strings"

	"audionest/internal/domain/narrative"
)

var (
	quotePattern     = regexp.MustCompile(`["“”]`)
	maleSpeakerRe    = regexp.MustCompile(`(?i)\b(he|the man|the boy|the old man)\s+(said|cried|shouted|whispered|asked|replied)\b`)
	femaleSpeakerRe  = regexp.MustCompile(`(?i)\b(she|the woman|the girl|the old woman)\s+(said|cried|shouted|whispered|asked|replied)\b`)
	namedSpeakerRe   = regexp.MustCompile(`\b(?:said|cried|shouted|whispered|asked|replied)\s+([A-Z][a-z]+)\b`)
	namedSpeakerPre  = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:said|cried|shouted|whispered|asked|replied)\b`)
	actionVerbsRe    = regexp.MustCompile(`(?i)\b(ran|jumped|struck|fought|grabbed|rushed|fled|charged|leapt|fell)\b`)
	speakerStopWords = map[string]struct{}{"He": {}, "She": {}, "It": {}, "They": {}, "I": {}, "We": {}, "The": {}}
)

// emotionKeywords are checked in order; the first group with a whole-word
// match wins.
var emotionKeywords = []struct {
	emotion narrative.Emotion
	pattern *regexp.Regexp
}{
	{narrative.EmotionTerrified, regexp.MustCompile(`(?i)\b(terrified|horror|horrified|scream(s|ed|ing)?)\b`)},
	{narrative.EmotionScared, regexp.MustCompile(`(?i)\b(afraid|scared|fear(s|ed|ful)?|trembl(e|es|ed|ing))\b`)},
	{narrative.EmotionAngry, regexp.MustCompile(`(?i)\b(angry|furious|rage|shouted)\b`)},
	{narrative.EmotionSad, regexp.MustCompile(`(?i)\b(wept|tears|sorrow|grief|mourn(s|ed|ing)?)\b`)},
	{narrative.EmotionJoyful, regexp.MustCompile(`(?i)\b(laugh(s|ed|ing)?|joy(ful|ous)?|delight(ed)?)\b`)},
	{narrative.EmotionHappy, regexp.MustCompile(`(?i)\b(smiled|happy|glad)\b`)},
	{narrative.EmotionMysterious, regexp.MustCompile(`(?i)\b(shadows?|whisper(s|ed|ing)?|secrets?|mysterious)\b`)},
}

// Heuristic annotates from punctuation and keywords without any remote call.
// It backs offline runs and never fails on non-empty text.
type Heuristic struct{}

func (Heuristic) Annotate(ctx context.Context, req Request) (narrative.Annotation, error) {
	a := narrative.Default()
	text := req.Text

	if quotePattern.MatchString(text) {
		a.SceneType = narrative.SceneDialogue
		a.IsDialogue = true
		a.Character = "speaker"
	} else if actionVerbsRe.MatchString(text) {
		a.SceneType = narrative.SceneAction
	}

	if a.IsDialogue {
		switch {
		case maleSpeakerRe.MatchString(text):
			a.Gender = narrative.GenderMale
			a.Character = "hero"
		case femaleSpeakerRe.MatchString(text):
			a.Gender = narrative.GenderFemale
			a.Character = "heroine"
		}
		a.SpeakerName = speakerName(text)
	}

	a.Emotion = detectEmotion(text)
	return a, nil
}

func detectEmotion(text string) narrative.Emotion {
	for _, group := range emotionKeywords {
		if group.pattern.MatchString(text) {
			return group.emotion
		}
	}

	switch {
	case strings.Contains(text, "!"):
		return narrative.EmotionExcited
	case strings.Contains(text, "?"):
		return narrative.EmotionMysterious
	default:
		return narrative.EmotionNeutral
	}
}

func speakerName(text string) string {
	for _, re := range []*regexp.Regexp{namedSpeakerRe, namedSpeakerPre} {
		if m := re.FindStringSubmatch(text); m != nil {
			if _, stop := speakerStopWords[m[1]]; !stop {
				return m[1]
			}
		}
	}
	return ""
}
