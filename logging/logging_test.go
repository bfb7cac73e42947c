package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscard(t *testing.T) {
	l := Discard()
	require.NotNil(t, l)
	l.Info().Str("k", "v").Msg("dropped")
	l.WithCorrelationId("job-1").Error().Msg("dropped")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesSessionFile(t *testing.T) {
	dir := t.TempDir()
	file := SessionFile(dir, time.Date(2026, 10, 16, 9, 30, 5, 0, time.Local))
	assert.Equal(t, filepath.Join(dir, "logs", "session-2026-10-16_09-30-05.log"), file)

	l, err := New(Options{Level: "error", File: file})
	require.NoError(t, err)
	assert.Equal(t, file, l.File())

	// the console only shows errors, the file keeps debug output
	l.Debug().Str("job_id", "j1").Msg("chunk planned")
	require.NoError(t, l.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "logs", "session-*"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	found := false
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err == nil && strings.Contains(string(data), "chunk planned") {
			found = true
		}
	}
	assert.True(t, found, "debug event missing from %v", matches)
}

func TestNewWithoutFile(t *testing.T) {
	l, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	assert.Empty(t, l.File())
	assert.NoError(t, l.Close())
}
