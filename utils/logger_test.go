package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer log.SetLevel(log.InfoLevel)

	require.Error(t, SetLevel("chatty"))
	require.NoError(t, SetLevel("warn"))

	Info("dropped", nil)
	require.Zero(t, buf.Len())

	Warn("bid commit conflicted", map[string]any{"listing_id": "listing1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warning", entry["level"])
	require.Equal(t, "bid commit conflicted", entry["msg"])
	require.Equal(t, "listing1", entry["listing_id"])
}
