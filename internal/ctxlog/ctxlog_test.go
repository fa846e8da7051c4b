package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("missing logger is silent", func(t *testing.T) {
		logger := FromContext(context.Background())
		require.NotNil(t, logger)
		assert.NotPanics(t, func() { logger.Info("dropped") })
	})

	t.Run("round trip", func(t *testing.T) {
		var buf bytes.Buffer

		logger := New("info", "text", &buf)
		ctx := WithLogger(context.Background(), logger)

		FromContext(ctx).Info("hello", "module_id", 2)
		assert.Contains(t, buf.String(), "module_id=2")
	})
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	logger := New("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "code", "lossy_flatten")

	var line map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "lossy_flatten", line["code"])
}
