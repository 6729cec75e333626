package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/core/logger"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("json format by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.NewWithWriter(logger.Config{}, &buf)
		log.Info("hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.NewWithWriter(logger.Config{Format: "text"}, &buf)
		log.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filtering", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.NewWithWriter(logger.Config{Level: "error"}, &buf)

		log.Info("dropped")
		assert.Empty(t, buf.String())

		log.Error("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.NewWithWriter(logger.Config{Level: "bogus"}, &buf)

		log.Debug("dropped")
		assert.Empty(t, buf.String())

		log.Info("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	t.Run("nil error yields empty attr", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, slog.Attr{}, logger.Error(nil))

		attr := logger.Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
	})

	t.Run("job attrs", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		assert.Equal(t, id.String(), logger.JobID(id).Value.String())
		assert.Equal(t, "send_broadcast", logger.JobType("send_broadcast").Value.String())
		assert.Equal(t, "broadcasts", logger.Queue("broadcasts").Value.String())
	})

	t.Run("empty broadcast id yields empty attr", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, slog.Attr{}, logger.BroadcastID(""))
		assert.Equal(t, "b1", logger.BroadcastID("b1").Value.String())
	})

	t.Run("duration and count", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "duration", logger.Duration(time.Second).Key)
		assert.Equal(t, int64(3), logger.Count("sent", 3).Value.Int64())
	})
}

func TestAttrs_RenderThroughHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.Config{Format: "text"}, &buf)

	log.Info("job completed",
		logger.Queue("broadcasts"),
		logger.Error(nil))

	line := buf.String()
	assert.Contains(t, line, "queue=broadcasts")
	assert.False(t, strings.Contains(line, "error="))
}
