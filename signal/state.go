package signal

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// tradeStats is the momentum source's learned state, persisted across
// restarts so a losing streak keeps dampening confidence after a crash.
type tradeStats struct {
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	LossStreak int     `json:"loss_streak"`
	NetProfit  float64 `json:"net_profit"`
}

func (s *tradeStats) record(profit float64) {
	s.NetProfit += profit
	if profit > 0 {
		s.Wins++
		s.LossStreak = 0
		return
	}
	if profit < 0 {
		s.Losses++
		s.LossStreak++
	}
}

// loadTradeStats reads persisted state; a missing file or empty path starts
// fresh.
func loadTradeStats(path string) (*tradeStats, error) {
	if path == "" {
		return &tradeStats{}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &tradeStats{}, nil
		}
		return nil, err
	}

	var s tradeStats
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// save writes the state atomically: tmp file in the same directory, then
// rename.
func (s *tradeStats) save(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
