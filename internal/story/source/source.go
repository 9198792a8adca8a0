package source

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultCatalogURL = "https://gutendex.com/books/"
	DefaultMaxAge     = 24 * time.Hour

	gutenbergScheme = "gutenberg:"
	cacheExt        = ".cache"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNotFound          = errors.New("document not found")
)

// Document is the raw, ordered text of a whole book plus whatever metadata
// the location carried.
type Document struct {
	Location string
	Text     string
	Title    string
	Author   string
	// Stale is set when a cached copy was used after a failed refresh.
	Stale bool
}

// Loader reads book text from local files, http(s) URLs and Project
// Gutenberg ids ("gutenberg:1342"). Downloads are cached on disk.
type Loader struct {
	cacheDir   string
	maxAge     time.Duration
	catalogURL string
	httpClient *http.Client
	log        logrus.FieldLogger
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

func WithCatalogURL(u string) Option {
	return func(l *Loader) { l.catalogURL = u }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Loader) { l.log = log }
}

func NewLoader(cacheDir string, maxAge time.Duration, opts ...Option) *Loader {
	l := &Loader{
		cacheDir:   cacheDir,
		maxAge:     maxAge,
		catalogURL: DefaultCatalogURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(l)
	}
	if !strings.HasSuffix(l.catalogURL, "/") {
		l.catalogURL += "/"
	}
	return l
}

// Load returns the text found at location with Gutenberg license
// boilerplate removed.
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrNotFound)
	}

	var (
		doc *Document
		err error
	)
	switch {
	case strings.HasPrefix(location, gutenbergScheme):
		doc, err = l.loadGutenberg(ctx, strings.TrimPrefix(location, gutenbergScheme))
	case isURL(location):
		doc, err = l.loadURL(ctx, location)
	default:
		doc, err = loadFile(location)
	}
	if err != nil {
		return nil, err
	}

	doc.Location = location
	doc.Text = StripBoilerplate(doc.Text)
	return doc, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func loadFile(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".epub", ".mobi", ".doc", ".docx":
		return nil, fmt.Errorf("%w: %s (convert it to plain text first)", ErrUnsupportedFormat, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Document{Text: decodeText(data)}, nil
}

func (l *Loader) loadURL(ctx context.Context, url string) (*Document, error) {
	data, stale, err := l.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Document{Text: decodeText(data), Stale: stale}, nil
}

// get returns the body at url, from cache when fresh. A failed refresh falls
// back to a stale cache entry.
func (l *Loader) get(ctx context.Context, url string) ([]byte, bool, error) {
	file := l.cacheFile(url)
	log := l.log.WithField("url", url)

	if l.isFresh(file) {
		if data, err := os.ReadFile(file); err == nil {
			log.Debug("Loading document from cache")
			return data, false, nil
		}
	}

	log.Info("Downloading document")
	data, err := l.fetch(ctx, url)
	if err != nil {
		log.WithError(err).Warn("Download failed, trying stale cache")
		if cached, cacheErr := os.ReadFile(file); cacheErr == nil {
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("failed to download %s and no cache available: %w", url, err)
	}

	if err := l.save(file, data); err != nil {
		log.WithError(err).Warn("Failed to save document to cache")
	}
	return data, false, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (l *Loader) cacheFile(url string) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(l.cacheDir, hex.EncodeToString(sum[:])+cacheExt)
}

func (l *Loader) isFresh(file string) bool {
	if l.maxAge <= 0 {
		return false
	}
	info, err := os.Stat(file)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < l.maxAge
}

func (l *Loader) save(file string, data []byte) error {
	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(l.cacheDir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), file)
}

// catalogBook is the subset of a Gutendex book record we use.
type catalogBook struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Formats map[string]string `json:"formats"`
}

func (l *Loader) loadGutenberg(ctx context.Context, id string) (*Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: missing Gutenberg id", ErrNotFound)
	}

	data, _, err := l.get(ctx, l.catalogURL+id+"/")
	if err != nil {
		return nil, err
	}

	var record catalogBook
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse catalog record for %s: %w", id, err)
	}

	textURL := bestTextFormat(record.Formats)
	if textURL == "" {
		return nil, fmt.Errorf("%w: Gutenberg book %s has no plain text edition", ErrUnsupportedFormat, id)
	}

	doc, err := l.loadURL(ctx, textURL)
	if err != nil {
		return nil, err
	}
	doc.Title = cleanTitle(record.Title)
	if len(record.Authors) > 0 {
		doc.Author = authorName(record.Authors[0].Name)
	}

	l.log.WithFields(logrus.Fields{
		"id":     id,
		"title":  doc.Title,
		"author": doc.Author,
	}).Info("Loaded Gutenberg book")
	return doc, nil
}

// bestTextFormat prefers utf-8 plain text over other plain text encodings.
func bestTextFormat(formats map[string]string) string {
	preferred := []string{
		"text/plain; charset=utf-8",
		"text/plain; charset=us-ascii",
		"text/plain",
	}
	for _, format := range preferred {
		if url, ok := formats[format]; ok {
			return url
		}
	}
	for format, url := range formats {
		if strings.HasPrefix(format, "text/plain") {
			return url
		}
	}
	return ""
}

func cleanTitle(title string) string {
	title = strings.Replace(title, "(English)", "", 1)
	return strings.Join(strings.Fields(title), " ")
}

// authorName turns the catalog's "Austen, Jane" into "Jane Austen".
func authorName(name string) string {
	last, first, ok := strings.Cut(name, ",")
	if !ok {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func decodeText(data []byte) string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ToValidUTF8(text, "")
}

// StripBoilerplate removes the Project Gutenberg header and license that
// surround the book text. Text without the markers is returned unchanged.
func StripBoilerplate(text string) string {
	lines := strings.Split(text, "\n")

	start, end := 0, len(lines)
	for i, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case start == 0 && isMarker(upper, "START OF"):
			start = i + 1
		case isMarker(upper, "END OF") && i >= start:
			end = i
		}
		if end != len(lines) {
			break
		}
	}
	if start == 0 && end == len(lines) {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func isMarker(line, kind string) bool {
	if !strings.HasPrefix(line, "***") {
		return false
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "*"))
	return strings.HasPrefix(line, kind+" THE PROJECT GUTENBERG") ||
		strings.HasPrefix(line, kind+" THIS PROJECT GUTENBERG")
}

// CacheInfo summarises the download cache.
type CacheInfo struct {
	Dir          string
	Exists       bool
	Entries      int
	FreshEntries int
	Size         int64
	LastModified time.Time
	MaxAge       time.Duration
}

func (l *Loader) CacheInfo() (CacheInfo, error) {
	info := CacheInfo{Dir: l.cacheDir, MaxAge: l.maxAge}

	entries, err := os.ReadDir(l.cacheDir)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("failed to read cache directory: %w", err)
	}
	info.Exists = true

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != cacheExt {
			continue
		}
		stat, err := e.Info()
		if err != nil {
			continue
		}
		info.Entries++
		info.Size += stat.Size()
		if stat.ModTime().After(info.LastModified) {
			info.LastModified = stat.ModTime()
		}
		if l.isFresh(filepath.Join(l.cacheDir, e.Name())) {
			info.FreshEntries++
		}
	}
	return info, nil
}

// ClearCache removes every cached download.
func (l *Loader) ClearCache() error {
	entries, err := os.ReadDir(l.cacheDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != cacheExt {
			continue
		}
		if err := os.Remove(filepath.Join(l.cacheDir, e.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		removed++
	}
	l.log.WithField("removed", removed).Info("Cleared document cache")
	return nil
}
