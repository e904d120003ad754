package anneal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestTextLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLoggerTo(&buf, LevelTrace)

	l.Log(context.Background(), LevelTrace, "step")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestJSONLogger_LogRun(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLoggerTo(&buf, slog.LevelInfo).WithK(3)

	l.LogRun(t.Context(), &Result{Iterations: 10, Accepted: 4, Rejected: 6, Energy: 0.5}, nil)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "run completed", rec["msg"])
	assert.EqualValues(t, 3, rec["k"])
	assert.EqualValues(t, 10, rec["iterations"])
	assert.EqualValues(t, 0.5, rec["energy"])
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLoggerTo(&buf, slog.LevelInfo)

	l.LogNormalize(t.Context(), 10, 0, nil)
	l.LogCache(t.Context(), "hit", "distances-1.apds", nil)
	assert.Empty(t, buf.String(), "debug messages are filtered at info")

	l.LogNormalize(t.Context(), 10, 2, nil)
	assert.Contains(t, buf.String(), "degenerate=2")

	buf.Reset()
	l.LogRun(t.Context(), &Result{}, context.Canceled)
	assert.Contains(t, buf.String(), "run interrupted")

	buf.Reset()
	l.LogBuild(t.Context(), 5, 0, 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))
}
