package book

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// minChapterChars is the amount of accumulated content a chapter needs
	// before a new heading may close it.
	minChapterChars = 100

	metadataScanLines = 50
	minTitleLen       = 6
	maxTitleLen       = 99

	maxHeadingLen     = 80
	maxUpperHeading   = 50
	maxFrontMatterLen = 60
)

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^CHAPTER\s+(\d+|[IVXLCDM]+|[A-Z]+)\b`),
	regexp.MustCompile(`^Chapter\s+(\d+|[IVXLCDM]+|[A-Z][a-z]+)\b`),
	regexp.MustCompile(`^(\d{1,3}|[IVXLCDM]{1,7})[.)]\s+\S`),
}

var frontMatterMarkers = []string{
	"TABLE OF CONTENTS",
	"INDEX",
	"PREFACE",
	"FOREWORD",
	"ACKNOWLEDGEMENTS",
	"ACKNOWLEDGMENTS",
}

var (
	authorByPattern  = regexp.MustCompile(`\b[Bb][Yy]\s+([A-Z][\w'.-]*\s+[A-Z][\w'.-]*)`)
	authorTagPattern = regexp.MustCompile(`(?i)author:\s*(.+)$`)
)

// Structure turns raw extracted text into a Book. It never fails: text without
// any recognisable heading becomes a single Prologue chapter.
func Structure(text string) Book {
	lines := splitLines(text)
	title, author := extractMetadata(lines)

	return Book{
		Title:    title,
		Author:   author,
		Chapters: detectChapters(lines),
	}
}

type chapterBuilder struct {
	title  string
	titled bool
	start  int
	lines  []string
	chars  int
}

func (cb *chapterBuilder) add(line string) {
	cb.lines = append(cb.lines, line)
	cb.chars += len(strings.TrimSpace(line))
}

func (cb *chapterBuilder) content() string {
	return strings.Join(cb.lines, "\n")
}

func detectChapters(lines []string) []Chapter {
	var chapters []Chapter
	current := &chapterBuilder{title: PrologueTitle}
	headed := false

	flush := func() {
		content := current.content()
		if strings.TrimSpace(content) == "" {
			return
		}
		chapters = append(chapters, Chapter{
			Index:       len(chapters),
			Title:       current.title,
			Content:     content,
			StartOffset: current.start,
		})
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isFrontMatter(trimmed) {
			continue
		}

		if trimmed == "" || !IsHeading(trimmed) {
			current.add(line)
			continue
		}

		headed = true
		if current.chars >= minChapterChars {
			flush()
			current = &chapterBuilder{title: trimmed, titled: true, start: i}
			continue
		}

		// Too little content to stand alone. Stacked headings are joined, a
		// stray uppercase line inside a titled chapter is plain content, and
		// short lead-in text is absorbed by the heading that follows it.
		switch {
		case current.titled && current.chars == 0:
			current.title = current.title + ": " + trimmed
		case current.titled && !matchesPattern(trimmed):
			current.add(line)
		default:
			if current.chars == 0 {
				current.start = i
			}
			current.title = trimmed
			current.titled = true
		}
	}
	flush()

	// Without any heading front matter cannot be told from prose, so the
	// whole text is kept.
	if !headed || len(chapters) == 0 {
		return []Chapter{{
			Index:   0,
			Title:   PrologueTitle,
			Content: strings.Join(lines, "\n"),
		}}
	}

	return chapters
}

// IsHeading reports whether a trimmed line matches one of the chapter
// boundary patterns.
func IsHeading(line string) bool {
	if line == "" || len(line) > maxHeadingLen {
		return false
	}
	return matchesPattern(line) || (len(line) <= maxUpperHeading && isUpper(line, 3))
}

func matchesPattern(line string) bool {
	for _, pattern := range headingPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// isFrontMatter reports whether a short line opens a front-matter section such
// as "Table of Contents" or "PREFACE TO THE SECOND EDITION".
func isFrontMatter(line string) bool {
	if line == "" || len(line) > maxFrontMatterLen {
		return false
	}
	upper := strings.ToUpper(line)
	for _, marker := range frontMatterMarkers {
		rest, found := strings.CutPrefix(upper, marker)
		if !found {
			continue
		}
		if strings.Trim(rest, " .:") == "" || isUpper(line, 1) {
			return true
		}
	}
	return false
}

// isUpper reports whether s has at least minLetters letters and none of them
// is lower case.
func isUpper(s string, minLetters int) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters >= minLetters
}

func extractMetadata(lines []string) (title, author string) {
	limit := min(len(lines), metadataScanLines)

	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if title == "" && !isFrontMatter(trimmed) &&
			len(trimmed) >= minTitleLen && len(trimmed) <= maxTitleLen && isUpper(trimmed, 1) {
			title = trimmed
		}

		if author == "" {
			author = matchAuthor(trimmed)
		}
	}

	if title == "" {
		title = UnknownTitle
	}
	if author == "" {
		author = UnknownAuthor
	}
	return title, author
}

func matchAuthor(line string) string {
	if m := authorTagPattern.FindStringSubmatch(line); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	if m := authorByPattern.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
