package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	log := New()
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestNewWithLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, NewWithLevel("WARN").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewWithLevel("nonsense").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewWithLevel("").GetLevel())
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	assert.NotNil(t, ctx.Value(LoggerKey))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	assert.NotZero(t, buf.Len())
}

func TestFromContext_NoLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"filename": "invoice.pdf",
		"folder":   "2025.03",
	})

	log.Info().Msg("committed")

	out := buf.String()
	assert.True(t, strings.Contains(out, `"filename":"invoice.pdf"`), out)
	assert.True(t, strings.Contains(out, `"folder":"2025.03"`), out)
}
