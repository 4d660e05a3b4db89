package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, INFO)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Success("found %s", "sqli")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] ")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "[SUCCESS] ")

	l.SetMinLevel(TRACE)
	assert.True(t, l.Enabled(DEBUG))
	l.Trace("did=%s", "abc")
	assert.Contains(t, buf.String(), "[TRACE] ")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(SUCCESS))
	assert.NotPanics(t, func() { l.Error("nothing %v", nil) })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace":   TRACE,
		" DEBUG ": DEBUG,
		"warning": WARN,
		"error":   ERROR,
		"info":    INFO,
		"loud":    INFO,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}
