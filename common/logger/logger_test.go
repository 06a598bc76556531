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
	user := "u1"
	log := NewWithWriter(&buf, "info", "json").
		WithActor("odp.test", &user).
		WithEntity("collection", "c1")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")
	log.WithContext(ctx).Info("tag applied", "command", "insert")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tag applied", line["msg"])
	assert.Equal(t, "odp.test", line["client_id"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "collection", line["entity_kind"])
	assert.Equal(t, "req-7", line["request_id"])
	assert.Equal(t, "insert", line["command"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")

	log.Info("ignored")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithActorOmitsNullUser(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "info", "json").WithActor("odp.client", nil).Info("x")
	assert.NotContains(t, buf.String(), "user_id")
}
