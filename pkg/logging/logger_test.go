package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_FormatsEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("playback", &buf)

	logger.Infof("waiting %d seconds", 60)
	logger.Warnf("watched time unparsable: %q", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[playback] [INFO] waiting 60 seconds")
	assert.Contains(t, lines[1], `[playback] [WARN] watched time unparsable: "abc"`)
}

func TestWith_PrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("watch", &buf).With("session")

	logger.Errorf("denial text found")

	assert.Contains(t, buf.String(), "[watch.session] [ERROR] denial text found")
}

func TestNewLogger_WritesRunFile(t *testing.T) {
	dir := t.TempDir()
	SetLogDirectory(dir)
	t.Cleanup(func() { SetLogDirectory("") })

	a, err := NewLogger("browser")
	require.NoError(t, err)
	b, err := NewLogger("auth")
	require.NoError(t, err)

	assert.Equal(t, a.LogPath(), b.LogPath())
	assert.Equal(t, filepath.Join(dir, GetRunID()+"-coursewatch.log"), a.LogPath())

	a.Infof("from browser")
	b.Debugf("from auth")
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	b.Infof("still open")
	require.NoError(t, b.Close())

	data, err := os.ReadFile(a.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[browser] [INFO] from browser")
	assert.Contains(t, string(data), "[auth] [DEBUG] from auth")
	assert.Contains(t, string(data), "still open")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() { logger.Infof("x") })
	assert.NoError(t, logger.Close())
	assert.NotEmpty(t, logger.RunID())
}
