package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	t.Run("info includes fields", func(t *testing.T) {
		buf.Reset()
		Info("stored copy", KeyResource, "abc-123", KeyAdapter, "local1")
		out := buf.String()
		assert.Contains(t, out, "stored copy")
		assert.Contains(t, out, "resource=abc-123")
		assert.Contains(t, out, "adapter=local1")
	})

	t.Run("debug suppressed above level", func(t *testing.T) {
		SetLevel("INFO")
		defer SetLevel("DEBUG")
		buf.Reset()
		Debug("noisy detail")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid level ignored", func(t *testing.T) {
		SetLevel("VERBOSE")
		buf.Reset()
		Info("still works")
		assert.Contains(t, buf.String(), "still works")
	})
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)
	defer SetFormat("text")

	Info("check complete", KeyDeep, true, KeyRepaired, false)

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "check complete", record["msg"])
	assert.Equal(t, true, record[KeyDeep])
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	lc := NewLogContext("retrieve").WithResource("abc-123").WithAdapter("s3-main")
	ctx := WithContext(t.Context(), lc)

	InfoCtx(ctx, "retrieved object")
	out := buf.String()
	assert.Contains(t, out, "operation=retrieve")
	assert.Contains(t, out, "resource=abc-123")
	assert.Contains(t, out, "adapter=s3-main")
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("ingest")
	clone := lc.WithResource("u-1")

	assert.Empty(t, lc.Resource)
	assert.Equal(t, "u-1", clone.Resource)
	assert.Equal(t, lc.Operation, clone.Operation)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Zero(t, nilCtx.DurationMs())
}
