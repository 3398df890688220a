package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQuietLoggerWritesJSONWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Info("cycle finished")
	logger.Warn("write failed", zap.String("resource", "glue_jobs/etl"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "write failed", entry["msg"])
	assert.Equal(t, "glue_jobs/etl", entry["resource"])
	assert.Equal(t, "runwatch", entry["logger"])
}

func TestVerboseLoggerIncludesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug("resolved since-time")
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "resolved since-time")
}
