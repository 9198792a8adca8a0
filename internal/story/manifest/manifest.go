package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"audionest/internal/domain/book"
	"audionest/internal/domain/selection"
)

type BookInfo struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

type Chapter struct {
	Number              int    `json:"number"`
	Title               string `json:"title"`
	FileName            string `json:"fileName,omitempty"`
	WordCount           int    `json:"wordCount"`
	IncludedInSelection bool   `json:"includedInSelection"`
	NarratedWordCount   int    `json:"narratedWordCount"`
	SkippedParagraphs   int    `json:"skippedParagraphs"`
	Flagged             bool   `json:"flagged,omitempty"`
}

// Manifest describes one run. It is rebuilt from scratch every time.
type Manifest struct {
	RunID         string    `json:"runId"`
	Book          BookInfo  `json:"book"`
	TotalChapters int       `json:"totalChapters"`
	Selection     []int     `json:"selection"`
	MasterFile    string    `json:"masterFile,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Chapters      []Chapter `json:"chapters"`
}

// Coverage is what assembly achieved for one chapter.
type Coverage struct {
	FileName          string
	NarratedWordCount int
	SkippedParagraphs int
	Flagged           bool
}

// Build lists every chapter of the book. Chapters without coverage keep zero
// counts and no file name.
func Build(runID string, b book.Book, sel selection.Selection, coverage map[int]Coverage, masterFile string) Manifest {
	m := Manifest{
		RunID:         runID,
		Book:          BookInfo{Title: b.Title, Author: b.Author},
		TotalChapters: len(b.Chapters),
		Selection:     append([]int{}, sel...),
		MasterFile:    masterFile,
		GeneratedAt:   time.Now().UTC(),
		Chapters:      make([]Chapter, 0, len(b.Chapters)),
	}

	for _, ch := range b.Chapters {
		entry := Chapter{
			Number:              ch.Number(),
			Title:               ch.Title,
			WordCount:           ch.WordCount(),
			IncludedInSelection: sel.Contains(ch.Number()),
		}
		if c, ok := coverage[ch.Number()]; ok {
			entry.FileName = c.FileName
			entry.NarratedWordCount = c.NarratedWordCount
			entry.SkippedParagraphs = c.SkippedParagraphs
			entry.Flagged = c.Flagged
		}
		m.Chapters = append(m.Chapters, entry)
	}

	return m
}

// Write stores the manifest as indented JSON, replacing any previous file in
// one rename.
func (m Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close manifest: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

func Read(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return m, nil
}
