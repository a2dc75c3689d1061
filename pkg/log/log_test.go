package log

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("debug", "json", &buf)

	l.With("project", "infra").Debug().
		Str("key", "DB_PASSWORD").
		Int("count", 3).
		Err(errors.New("boom")).
		Msg("cache loaded")

	out := buf.String()
	assert.Contains(t, out, `"project":"infra"`)
	assert.Contains(t, out, `"key":"DB_PASSWORD"`)
	assert.Contains(t, out, `"count":3`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"message":"cache loaded"`)
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("warn", "json", &buf)

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithContext_InvocationID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("info", "json", &buf)

	ctx := ContextWithInvocationID(context.Background(), "abc-123")
	l.WithContext(ctx).Info().Msg("invoked")

	assert.Contains(t, buf.String(), `"invocation_id":"abc-123"`)
}

func TestFromContext(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))

	var buf bytes.Buffer
	l := NewWithWriter("info", "json", &buf)
	ctx := ContextWithLogger(context.Background(), l)

	FromContext(ctx).Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")
}
