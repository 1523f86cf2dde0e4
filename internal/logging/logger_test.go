package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonTerminalWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelInfo, &buf)
	log.Debug("hidden")
	log.Warn("stalled", "error", errors.New("no frontier"), "passes", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stalled", rec["msg"])
	assert.Equal(t, "no frontier", rec["err"])
	assert.NotContains(t, rec, "error")
	assert.EqualValues(t, 3, rec["passes"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Error("ignored") })
}
