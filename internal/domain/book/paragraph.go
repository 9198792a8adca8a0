package book

import "strings"

// DefaultMaxParagraphChars caps a paragraph when no explicit limit is given.
const DefaultMaxParagraphChars = 1000

// Paragraphs splits chapter content into narration units. A blank line always
// ends the running paragraph; a line that would push the paragraph past
// maxChars starts a new one. A single line longer than maxChars is kept whole.
// Lines are kept verbatim, indentation included.
func Paragraphs(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxParagraphChars
	}

	var (
		paragraphs []string
		current    strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
		}
	}

	for _, line := range splitLines(content) {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(line) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(line)
	}
	flush()

	return paragraphs
}

// Paragraphs segments the chapter with the given limit.
func (c Chapter) Paragraphs(maxChars int) []string {
	return Paragraphs(c.Content, maxChars)
}
