package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncHandlerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	var mirror bytes.Buffer
	handler := NewAsyncHandler(dir, slog.LevelDebug, &mirror)
	log := slog.New(handler).With("conn", "127.0.0.1:7777")

	log.Debug("frame sent", "command", "SUBSCRIBE")
	log.Info("ignored level check")
	require.NoError(t, handler.Close())

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "frame sent")
	assert.Contains(t, content, "command=SUBSCRIBE")
	assert.Contains(t, content, "conn=127.0.0.1:7777")
	assert.Equal(t, content, mirror.String())
	assert.Equal(t, 2, strings.Count(content, "\n"))
}

func TestAsyncHandlerLevelFilter(t *testing.T) {
	handler := NewAsyncHandler(t.TempDir(), slog.LevelInfo, nil)
	defer handler.Close()

	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, handler.Enabled(context.Background(), LevelFatal))
}

func TestAsyncHandlerCloseTwice(t *testing.T) {
	handler := NewAsyncHandler(t.TempDir(), slog.LevelInfo, nil)
	require.NoError(t, handler.Close())
	require.NoError(t, handler.Close())
	// records after close are dropped rather than panicking
	slog.New(handler).Info("late record")
}
