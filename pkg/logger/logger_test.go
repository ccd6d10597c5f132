package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo}).With(Component("results"))

	l.Debug("hidden")
	l.Info("result created", ResultID("r1"), Position(2), Err(errors.New("x")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "result created", entry.Message)
	assert.Equal(t, "results", entry.Fields["component"])
	assert.Equal(t, "r1", entry.Fields["result_id"])
	assert.Equal(t, float64(2), entry.Fields["position"])
	assert.Equal(t, "x", entry.Fields["error"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelDebug, Format: FormatText})

	l.Warn("sweep failed", CohortKey("Primary 3|First|2024/2025"), ActorID("a1"))

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "sweep failed")
	assert.Less(t, strings.Index(out, "actor_id=a1"), strings.Index(out, "cohort="))
}

func TestLogger_ChildrenShareOutput(t *testing.T) {
	var buf bytes.Buffer
	root := New(Options{Output: &buf, Level: LevelWarn})
	child := root.WithRequestID("req-1")

	child.Info("dropped")
	child.Error("kept", Latency(1500*time.Millisecond))

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"latency":"1.5s"`)
}

func TestContext(t *testing.T) {
	l := New(Options{Output: &bytes.Buffer{}})
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(&buf, LevelWarn, FormatJSON, "worker")

	l.Info("hidden")
	l.Warn("visible", "job", "rerank_cohorts")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, "worker", rec["service"])
	assert.Equal(t, "rerank_cohorts", rec["job"])
}
