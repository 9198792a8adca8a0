package player

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlay_MissingFile(t *testing.T) {
	err := Play(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPlay_NotAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.wav")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a wave file"), 0644))

	err := Play(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}
