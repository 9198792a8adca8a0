package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gutenbergText = `The Project Gutenberg eBook of The Silent Sea

This eBook is for the use of anyone anywhere.

*** START OF THE PROJECT GUTENBERG EBOOK THE SILENT SEA ***

THE SILENT SEA

CHAPTER 1

The water was still.

*** END OF THE PROJECT GUTENBERG EBOOK THE SILENT SEA ***

Updated editions will replace the previous one.
`

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestStripBoilerplate(t *testing.T) {
	got := StripBoilerplate(gutenbergText)
	assert.Equal(t, "THE SILENT SEA\n\nCHAPTER 1\n\nThe water was still.", got)

	plain := "Just a story.\nNo markers here."
	assert.Equal(t, plain, StripBoilerplate(plain))
}

func TestLoad_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(path, []byte("\ufeff"+gutenbergText), 0644))

	l := NewLoader(t.TempDir(), time.Hour, WithLogger(quietLogger()))
	doc, err := l.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, doc.Location)
	assert.Contains(t, doc.Text, "The water was still.")
	assert.NotContains(t, doc.Text, "Project Gutenberg")
}

func TestLoad_LocalFileErrors(t *testing.T) {
	l := NewLoader(t.TempDir(), time.Hour, WithLogger(quietLogger()))

	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "book.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.Load(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_URLUsesFreshCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, gutenbergText)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	l := NewLoader(cacheDir, time.Hour, WithLogger(quietLogger()))

	for i := 0; i < 2; i++ {
		doc, err := l.Load(context.Background(), srv.URL+"/book.txt")
		require.NoError(t, err)
		assert.Contains(t, doc.Text, "The water was still.")
		assert.False(t, doc.Stale)
	}
	assert.EqualValues(t, 1, hits.Load())

	info, err := l.CacheInfo()
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, 1, info.Entries)
	assert.Equal(t, 1, info.FreshEntries)
	assert.Positive(t, info.Size)
}

func TestLoad_StaleCacheFallback(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "Cached words.")
	}))
	defer srv.Close()

	// A zero max age makes every cached entry stale.
	l := NewLoader(t.TempDir(), 0, WithLogger(quietLogger()))

	doc, err := l.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, doc.Stale)

	fail.Store(true)
	doc, err = l.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, doc.Stale)
	assert.Equal(t, "Cached words.", doc.Text)
}

func TestLoad_DownloadFailureWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(t.TempDir(), time.Hour, WithLogger(quietLogger()))
	_, err := l.Load(context.Background(), srv.URL+"/nothing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_GutenbergID(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/books/1342/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"id": 1342,
			"title": "The Silent Sea (English)",
			"authors": [{"name": "Marlowe, Jane"}],
			"formats": {
				"text/html": "%[1]s/files/1342.html",
				"text/plain; charset=utf-8": "%[1]s/files/1342.txt"
			}
		}`, srv.URL)
	})
	mux.HandleFunc("/files/1342.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gutenbergText)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	l := NewLoader(t.TempDir(), time.Hour, WithCatalogURL(srv.URL+"/books"), WithLogger(quietLogger()))
	doc, err := l.Load(context.Background(), "gutenberg:1342")
	require.NoError(t, err)

	assert.Equal(t, "The Silent Sea", doc.Title)
	assert.Equal(t, "Jane Marlowe", doc.Author)
	assert.Equal(t, "gutenberg:1342", doc.Location)
	assert.Contains(t, doc.Text, "CHAPTER 1")
	assert.NotContains(t, doc.Text, "START OF")
}

func TestLoad_GutenbergWithoutPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 7, "title": "Pictures", "authors": [], "formats": {"image/jpeg": "x"}}`)
	}))
	defer srv.Close()

	l := NewLoader(t.TempDir(), time.Hour, WithCatalogURL(srv.URL), WithLogger(quietLogger()))
	_, err := l.Load(context.Background(), "gutenberg:7")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestClearCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "words")
	}))
	defer srv.Close()

	cacheDir := filepath.Join(t.TempDir(), "cache")
	l := NewLoader(cacheDir, time.Hour, WithLogger(quietLogger()))

	require.NoError(t, l.ClearCache(), "clearing a missing cache is not an error")

	_, err := l.Load(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	_, err = l.Load(context.Background(), srv.URL+"/b")
	require.NoError(t, err)

	info, err := l.CacheInfo()
	require.NoError(t, err)
	assert.Equal(t, 2, info.Entries)

	require.NoError(t, l.ClearCache())
	info, err = l.CacheInfo()
	require.NoError(t, err)
	assert.Zero(t, info.Entries)
}

func TestAuthorName(t *testing.T) {
	assert.Equal(t, "Jane Austen", authorName("Austen, Jane"))
	assert.Equal(t, "Homer", authorName("Homer"))
}
