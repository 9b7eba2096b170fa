package utils

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_CtxArgs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, slog.LevelDebug)

	ctx := WithDefaultArgs(context.Background(), "channel", "chan1")
	ctx2 := WithDefaultArgs(ctx, "objectId", "root")
	log.WarnCtx(ctx2, "discarded", "action", "MAP_SET")

	out := buf.String()
	assert.Contains(t, out, "[liveobjects] discarded")
	assert.Contains(t, out, "action=MAP_SET")
	assert.Contains(t, out, "channel=chan1")
	assert.Contains(t, out, "objectId=root")

	buf.Reset()
	log.InfoCtx(ctx, "parent")
	assert.NotContains(t, buf.String(), "objectId")
}

func TestDefaultLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, slog.LevelWarn).With("engine", "test")
	log.Debug("hidden")
	assert.Empty(t, buf.String())
	log.Error("shown")
	assert.Contains(t, buf.String(), "engine=test")
}
