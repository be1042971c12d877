package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesPolicyConstants(t *testing.T) {
	t.Setenv("SUBMISSION_POINTS", "50")
	t.Setenv("FAST_REVEAL_POINTS", "500")
	t.Setenv("WINNING_CHOICE_POINTS", "1500")
	t.Setenv("PRIZE_AMOUNTS", "10, 5")
	t.Setenv("COLLECT_SECONDS", "not-a-number")
	t.Setenv("LOBBY_CAPACITY", "6")
	t.Setenv("MIN_PLAYERS", "0")

	cfg := Load()
	if cfg.SubmissionPoints != 50 || cfg.FastRevealPoints != 500 || cfg.WinningChoicePoints != 1500 {
		t.Fatalf("unexpected points: %+v", cfg)
	}
	if len(cfg.PrizeAmounts) != 2 || cfg.PrizeAmounts[0] != 10 || cfg.PrizeAmounts[1] != 5 {
		t.Fatalf("unexpected prize amounts: %v", cfg.PrizeAmounts)
	}
	if cfg.LobbyCapacity != 6 || cfg.MinPlayers != 1 {
		t.Fatalf("unexpected lobby settings: capacity=%d min=%d", cfg.LobbyCapacity, cfg.MinPlayers)
	}
	if cfg.CollectDurationSeconds != Default().CollectDurationSeconds {
		t.Fatalf("expected default collect seconds, got %d", cfg.CollectDurationSeconds)
	}
}

func TestLoadIgnoresInvalidPrizeAmounts(t *testing.T) {
	t.Setenv("PRIZE_AMOUNTS", "10,abc")
	cfg := Load()
	if len(cfg.PrizeAmounts) != len(Default().PrizeAmounts) {
		t.Fatalf("expected default prize amounts, got %v", cfg.PrizeAmounts)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}

func TestLoadDotEnvReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("HIVEMIND_TEST_KEY=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("HIVEMIND_TEST_KEY") })
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("HIVEMIND_TEST_KEY"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
