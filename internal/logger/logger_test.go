package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel(WARN)
	defer SetLevel(INFO)

	Info("hidden")
	Warn("shown", 3, errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] logger_test.go:")
	assert.Contains(t, out, "shown 3 boom")
}

func TestStructuredArgsAreDumpedAsJSON(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel(DEBUG)
	defer SetLevel(INFO)

	Debug("standings", map[string]int{"Anchor": 4})
	out := buf.String()
	assert.Contains(t, out, "[Object of type map[string]int]")
	assert.Contains(t, out, `"Anchor": 4`)
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]LogLevel{"debug": DEBUG, "": INFO, "Warning": WARN, "ERROR": ERROR} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetLogOutputRejectsUnknownTarget(t *testing.T) {
	assert.Error(t, SetLogOutput('x'))
}
