package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahlbert/mt5-tradingbot/config"
)

type captureSink struct {
	subjects []string
}

func (c *captureSink) Notify(subject, _ string) bool {
	c.subjects = append(c.subjects, subject)
	return true
}

// useSimVenue flips the --sim flag for the duration of one test.
func useSimVenue(t *testing.T, enabled bool) {
	t.Helper()
	prev := runSim
	runSim = enabled
	t.Cleanup(func() { runSim = prev })
}

func TestBuildBotAlertsWhenBridgeUnreachable(t *testing.T) {
	useSimVenue(t, false)

	cfg := config.Default()
	cfg.Bridge.URL = "http://127.0.0.1:1"
	cfg.Journal.DBPath = filepath.Join(t.TempDir(), "bot.db")

	sink := &captureSink{}
	_, err := buildBot(cfg, zap.NewNop(), sink)
	require.Error(t, err)
	assert.Contains(t, sink.subjects, "bot startup failed")
}

func TestBuildBotAlertsWhenJournalFails(t *testing.T) {
	useSimVenue(t, true)

	cfg := config.Default()
	cfg.Journal.DBPath = filepath.Join(t.TempDir(), "missing", "bot.db")

	sink := &captureSink{}
	_, err := buildBot(cfg, zap.NewNop(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open journal")
	assert.Contains(t, sink.subjects, "bot startup failed")
}

func TestBuildBotWiresCleanly(t *testing.T) {
	useSimVenue(t, true)

	cfg := config.Default()
	cfg.Journal.DBPath = filepath.Join(t.TempDir(), "bot.db")

	sink := &captureSink{}
	b, err := buildBot(cfg, zap.NewNop(), sink)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Empty(t, sink.subjects)
}