package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// chapterRecord is the coverage of a persisted chapter file, stored next to it
// so a resumed run reports what the file actually holds.
type chapterRecord struct {
	Paragraphs         int    `json:"paragraphs"`
	Synthesized        int    `json:"synthesized"`
	Skipped            []Skip `json:"skipped,omitempty"`
	DefaultAnnotations int    `json:"defaultAnnotations"`
	DegradedVoices     int    `json:"degradedVoices"`
	WordCount          int    `json:"wordCount"`
	NarratedWordCount  int    `json:"narratedWordCount"`
	Flagged            bool   `json:"flagged,omitempty"`
}

func recordOf(res ChapterResult) chapterRecord {
	return chapterRecord{
		Paragraphs:         res.Paragraphs,
		Synthesized:        res.Synthesized,
		Skipped:            res.Skipped,
		DefaultAnnotations: res.DefaultAnnotations,
		DegradedVoices:     res.DegradedVoices,
		WordCount:          res.WordCount,
		NarratedWordCount:  res.NarratedWordCount,
		Flagged:            res.Flagged,
	}
}

func (r chapterRecord) apply(res *ChapterResult) {
	res.Paragraphs = r.Paragraphs
	res.Synthesized = r.Synthesized
	res.Skipped = r.Skipped
	res.DefaultAnnotations = r.DefaultAnnotations
	res.DegradedVoices = r.DegradedVoices
	res.WordCount = r.WordCount
	res.NarratedWordCount = r.NarratedWordCount
	res.Flagged = r.Flagged
}

func writeRecord(path string, r chapterRecord) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chapter record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chapter-*.json")
	if err != nil {
		return fmt.Errorf("failed to create chapter record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write chapter record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close chapter record: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func readRecord(path string) (chapterRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chapterRecord{}, err
	}
	var r chapterRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return chapterRecord{}, fmt.Errorf("failed to decode chapter record %s: %w", path, err)
	}
	return r, nil
}
