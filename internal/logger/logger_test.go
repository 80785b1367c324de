package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleOnly(t *testing.T) {
	lg, err := New(Config{Level: "debug", Console: true})
	require.NoError(t, err)
	defer lg.Close()

	assert.Equal(t, "debug", lg.Get().GetLevel().String())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sharpshop.log")

	lg, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	zl := lg.Get()
	zl.Info().Str("component", "test").Msg("hello")
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), "hello")
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	lg, err := New(Config{Level: "loud", Console: true})
	require.NoError(t, err)
	defer lg.Close()

	assert.Equal(t, "info", lg.Get().GetLevel().String())
}
