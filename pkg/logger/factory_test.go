package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Info("hello")
	entry := decode(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger.New(logger.WithOutput(&buf), logger.WithTextFormatter()).Info("hello", slog.Int("n", 1))
	assert.Contains(t, buf.String(), "msg=hello n=1")

	buf.Reset()
	logger.New(logger.WithOutput(&buf), logger.WithTextFormatter(), logger.WithJSONFormatter()).Info("hello")
	assert.Equal(t, "hello", decode(t, &buf)["msg"])

	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevelName("warn"))
	log.Info("skipped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])

	buf.Reset()
	log = logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelDebug), logger.WithLevelName("verbose"))
	log.Debug("still debug")
	assert.Equal(t, "still debug", decode(t, &buf)["msg"])
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env       string
		wantEnv   string
		debugSeen bool
	}{
		{env: "production", wantEnv: "production"},
		{env: "stage", wantEnv: "staging"},
		{env: "dev", wantEnv: "development", debugSeen: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.New(logger.WithEnvironment(tt.env, "solshare-worker"), logger.WithOutput(&buf))

			log.Debug("debug")
			assert.Equal(t, tt.debugSeen, buf.Len() > 0)

			buf.Reset()
			log.Warn("warn")
			out := buf.String()
			assert.Contains(t, out, "solshare-worker")
			assert.Contains(t, out, tt.wantEnv)
		})
	}
}

func TestNew_ContextExtractors(t *testing.T) {
	t.Parallel()

	type key struct{}

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("svc", "test")),
		logger.WithContextValue("tenant", key{}),
		logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
			return slog.String("static", "yes"), true
		}),
	)

	ctx := context.WithValue(context.Background(), key{}, "t1")
	log.With(logger.Component("jobs")).InfoContext(ctx, "msg")

	entry := decode(t, &buf)
	assert.Equal(t, "test", entry["svc"])
	assert.Equal(t, "t1", entry["tenant"])
	assert.Equal(t, "yes", entry["static"])
	assert.Equal(t, "jobs", entry["component"])

	buf.Reset()
	log.WithGroup("g").Info("no ctx value")
	entry = decode(t, &buf)
	assert.NotContains(t, entry, "tenant")
}

func TestSetAsDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger.SetAsDefault(logger.New(logger.WithOutput(&buf)))
	slog.Info("default")
	assert.Equal(t, "default", decode(t, &buf)["msg"])
}
