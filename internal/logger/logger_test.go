package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToFileAndConsole(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "nested", "pdftools.log")

	require.NoError(t, Init(Options{Level: "debug", File: file, MaxSizeMB: 1, Stdout: &console}))
	defer Close()

	log.Info().Str("tool", "merge").Msg("done")

	var ev map[string]any
	require.NoError(t, json.Unmarshal(console.Bytes(), &ev))
	assert.Equal(t, "merge", ev["tool"])
	assert.Equal(t, "info", ev["level"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"done"`)
}

func TestInitFallsBackToInfo(t *testing.T) {
	var console bytes.Buffer
	require.NoError(t, Init(Options{Level: "loud", Stdout: &console}))
	defer Close()

	log.Debug().Msg("hidden")
	assert.Empty(t, console.String())
	log.Warn().Msg("shown")
	assert.Contains(t, console.String(), "shown")
}

func TestAxiomSinkFiltersByLevel(t *testing.T) {
	ship := &axiomShipper{events: make(chan axiom.Event, 1)}
	sink := &axiomSink{ship: ship, min: zerolog.InfoLevel}

	n, err := sink.WriteLevel(zerolog.DebugLevel, []byte(`{"level":"debug","message":"noise"}`))
	require.NoError(t, err)
	assert.Equal(t, 35, n)
	assert.Empty(t, ship.events)

	_, err = sink.WriteLevel(zerolog.WarnLevel, []byte(`{"level":"warn","tool":"merge","message":"slow"}`))
	require.NoError(t, err)
	require.Len(t, ship.events, 1)
	ev := <-ship.events
	assert.Equal(t, ServiceName, ev["service"])
	assert.Equal(t, "merge", ev["tool"])
	assert.Contains(t, ev, ingest.TimestampField)
}

func TestAxiomSinkKeepsUnparsableLines(t *testing.T) {
	ship := &axiomShipper{events: make(chan axiom.Event, 1)}
	sink := &axiomSink{ship: ship, min: zerolog.InfoLevel}

	_, err := sink.Write([]byte("plain text"))
	require.NoError(t, err)
	ev := <-ship.events
	assert.Equal(t, "plain text", ev["message"])
	assert.Equal(t, "info", ev["level"])
}

func TestAxiomShipperCountsDrops(t *testing.T) {
	ship := &axiomShipper{events: make(chan axiom.Event, 1)}
	ship.Send(axiom.Event{"message": "a"})
	ship.Send(axiom.Event{"message": "b"})
	ship.Send(axiom.Event{"message": "c"})
	assert.Equal(t, int64(2), ship.dropped.Load())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}
