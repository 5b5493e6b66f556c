package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	ctx := NewContext(context.Background(), "req-1")
	log.WithContext(ctx).WithEntity("award", "a1").WithActor("u1").Info("transition committed", "to", "issued")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "award", line["kind"])
	assert.Equal(t, "a1", line["entity_id"])
	assert.Equal(t, "u1", line["actor_id"])
	assert.Equal(t, "issued", line["to"])
}

func TestErrorAddsStack(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "info", "json").Error("boom")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotEmpty(t, line["stack"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "text")
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
