package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWithWriterCapturesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	l.WithComponent("sim").WithField("reason", "StopLoss").Info("position closed")

	out := buf.String()
	assert.Contains(t, out, "component=sim")
	assert.Contains(t, out, "reason=StopLoss")
	assert.Contains(t, out, `msg="position closed"`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compound.log")
	l := New(Config{Level: "info", Format: "json", Output: path, MaxSize: 1})
	require.NotNil(t, l)
	l.WithPosition("P1").Info("opened")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Error("discarded") })
}
