package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantJSON   bool
		wantOutput bool
	}{
		{name: "console info", opts: Options{Verbosity: 1}, wantOutput: true},
		{name: "json info", opts: Options{JSON: true, Verbosity: 1}, wantJSON: true, wantOutput: true},
		{name: "quiet drops info", opts: Options{Verbosity: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Output = &buf
			require.NoError(t, Initialize(tt.opts))
			t.Cleanup(func() { Logger = zap.NewNop().Sugar() })

			Infow("document opened", FieldURI, "file:///a.md")
			Cleanup()

			assert.Equal(t, tt.wantJSON, JSONOutput)
			if !tt.wantOutput {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), "document opened")
			if tt.wantJSON {
				var line map[string]any
				require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
				assert.Equal(t, "file:///a.md", line[FieldURI])
			}
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{0, zapcore.WarnLevel},
		{1, zapcore.InfoLevel},
		{2, zapcore.DebugLevel},
		{5, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestFieldsFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FieldsFromContext(ctx))

	ctx = WithRequestID(ctx, "7")
	assert.Equal(t, []interface{}{FieldRequestID, "7"}, FieldsFromContext(ctx))
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	assert.Same(t, Logger, FromContext(context.Background(), nil))
}
