package book

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParagraphs_BlankLinesSplit(t *testing.T) {
	content := "First line.\nstill first.\n\n\nSecond.\n\nThird."

	got := Paragraphs(content, DefaultMaxParagraphChars)

	assert.Equal(t, []string{"First line. still first.", "Second.", "Third."}, got)
}

func TestParagraphs_MaxLengthFlushes(t *testing.T) {
	content := "aaaa\nbbbb\ncccc"

	got := Paragraphs(content, 9)

	assert.Equal(t, []string{"aaaa bbbb", "cccc"}, got)
}

func TestParagraphs_LongLineKeptWhole(t *testing.T) {
	long := strings.Repeat("x", 30)
	content := "short\n" + long + "\ntail"

	got := Paragraphs(content, 10)

	assert.Equal(t, []string{"short", long, "tail"}, got)
}

func TestParagraphs_KeepsLinesVerbatim(t *testing.T) {
	content := "    Indented opening line.\n  continued here.\n\n\tTabbed verse."

	got := Paragraphs(content, DefaultMaxParagraphChars)

	assert.Equal(t, []string{
		"    Indented opening line.   continued here.",
		"\tTabbed verse.",
	}, got)
}

func TestParagraphs_EmptyContent(t *testing.T) {
	assert.Empty(t, Paragraphs("", 100))
	assert.Empty(t, Paragraphs("\n \n\t\n", 100))
}

func TestParagraphs_DefaultLimit(t *testing.T) {
	line := strings.Repeat("y", 600)
	got := Paragraphs(line+"\n"+line, 0)
	assert.Len(t, got, 2)
}

func TestParagraphs_PreservesEveryLineInOrder(t *testing.T) {
	lines := []string{
		"The sea was calm.",
		"",
		"A gull cried somewhere above the mast.",
		"Nobody answered it.",
		"",
		"",
		"Then the wind rose and the sails filled.",
		"They were moving again.",
		"Night came quickly.",
	}

	for _, limit := range []int{10, 40, 60, 1000} {
		paragraphs := Paragraphs(strings.Join(lines, "\n"), limit)

		var want []string
		for _, l := range lines {
			if l != "" {
				want = append(want, l)
			}
		}

		rejoined := strings.Join(paragraphs, " ")
		require.Equal(t, strings.Join(want, " "), rejoined, "limit %d", limit)

		for _, p := range paragraphs {
			assert.NotEmpty(t, p)
		}
	}
}

func TestChapter_Paragraphs(t *testing.T) {
	ch := Chapter{Content: "one\n\ntwo"}
	assert.Equal(t, []string{"one", "two"}, ch.Paragraphs(100))
}
