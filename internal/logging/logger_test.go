package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("should write component and fields to the console writer", func(t *testing.T) {
		// given
		var buf bytes.Buffer
		l := NewLogger("browser", &buf)

		// when
		l.Info().Str("folder_id", "f1").Msg("folder opened")

		// then
		out := buf.String()
		assert.Contains(t, out, "folder opened")
		assert.Contains(t, out, "folder_id=f1")
		assert.Contains(t, out, "component=browser")
	})

	t.Run("should keep the output for named children", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger("cli", &buf).Named("drive-client")

		l.Warn().Msg("retrying")

		assert.Equal(t, "drive-client", l.Component())
		assert.Contains(t, buf.String(), "component=drive-client")
	})
}

func TestSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger("cli", &first)

	l.SetOutput(&second)
	l.Info().Msg("moved")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "moved")
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tui.log")
	l, closer := NewFileLogger("tui", path)

	l.Info().Msg("started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"started"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}
