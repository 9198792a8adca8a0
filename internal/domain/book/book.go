package book

import "strings"

const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"

	// PrologueTitle names the single chapter emitted when no heading is detected.
	PrologueTitle = "Prologue"
)

// Book is the structured form of a raw text
type Book struct {
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	Chapters []Chapter `json:"-"`
}

// Chapter is immutable once detected. Index is the zero-based detection order,
// StartOffset the source line the chapter begins at.
type Chapter struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Content     string `json:"-"`
	StartOffset int    `json:"start_offset"`
}

// Number returns the 1-based chapter number used by selections and file names.
func (c Chapter) Number() int {
	return c.Index + 1
}

func (c Chapter) WordCount() int {
	return len(strings.Fields(c.Content))
}

// Chapter returns the chapter with the given 1-based number.
func (b Book) Chapter(number int) (Chapter, bool) {
	if number < 1 || number > len(b.Chapters) {
		return Chapter{}, false
	}
	return b.Chapters[number-1], true
}

func (b Book) WordCount() int {
	total := 0
	for _, ch := range b.Chapters {
		total += ch.WordCount()
	}
	return total
}
