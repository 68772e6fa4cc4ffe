package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	f, logger, err := FileLogger(logrus.InfoLevel, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	logger.SetOutput(f)
	logger.WithField("collection", "projects").Info("evicted")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"collection":"projects"`)
	require.Contains(t, string(raw), `"msg":"evicted"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := ConsoleLogger(logrus.DebugLevel)
	logger.SetOutput(&buf)
	Component(logger, "invalidation").Debug("hello")
	require.Contains(t, buf.String(), "component=invalidation")

	require.NotPanics(t, func() { Component(nil, "x").Error("discarded") })
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	require.Equal(t, logrus.PanicLevel, ParseLevel("silent"))
	require.Equal(t, logrus.ErrorLevel, ParseLevel("nonsense"))
}
