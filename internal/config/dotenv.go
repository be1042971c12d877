package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	CollectDurationSeconds   int
	RevealDurationSeconds    int
	SubmissionPoints         uint64
	FastRevealPoints         uint64
	WinningChoicePoints      uint64
	PrizeCutoff              int
	PrizeAmounts             []uint64
	KeeperIntervalMillis     int
	LobbyCapacity            int
	MinPlayers               int
	AdminID                  string
	RandomnessSeed           string
	QuestionsPath            string
	RateLimitPerSecond       float64
	RateLimitBurst           int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		CollectDurationSeconds:   60,
		RevealDurationSeconds:    45,
		SubmissionPoints:         100,
		FastRevealPoints:         1000,
		WinningChoicePoints:      3000,
		PrizeCutoff:              4,
		PrizeAmounts:             []uint64{4000, 3000, 2000, 1000},
		KeeperIntervalMillis:     2000,
		LobbyCapacity:            0,
		MinPlayers:               1,
		AdminID:                  "admin",
		QuestionsPath:            "questions/questions.csv",
		RateLimitPerSecond:       5,
		RateLimitBurst:           10,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("COLLECT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.CollectDurationSeconds = value
		}
	}
	if raw := os.Getenv("REVEAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.RevealDurationSeconds = value
		}
	}
	if raw := os.Getenv("SUBMISSION_POINTS"); raw != "" {
		if value, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.SubmissionPoints = value
		}
	}
	if raw := os.Getenv("FAST_REVEAL_POINTS"); raw != "" {
		if value, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.FastRevealPoints = value
		}
	}
	if raw := os.Getenv("WINNING_CHOICE_POINTS"); raw != "" {
		if value, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.WinningChoicePoints = value
		}
	}
	if raw := os.Getenv("PRIZE_CUTOFF"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.PrizeCutoff = value
		}
	}
	if raw := os.Getenv("PRIZE_AMOUNTS"); raw != "" {
		if amounts, ok := parseAmounts(raw); ok {
			cfg.PrizeAmounts = amounts
		}
	}
	if raw := os.Getenv("KEEPER_INTERVAL_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.KeeperIntervalMillis = value
		}
	}
	if raw := os.Getenv("LOBBY_CAPACITY"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.LobbyCapacity = value
		}
	}
	if raw := os.Getenv("MIN_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MinPlayers = value
		}
	}
	if raw := os.Getenv("ADMIN_ID"); raw != "" {
		cfg.AdminID = raw
	}
	if raw := os.Getenv("RANDOMNESS_SEED"); raw != "" {
		cfg.RandomnessSeed = raw
	}
	if raw := os.Getenv("QUESTIONS_PATH"); raw != "" {
		cfg.QuestionsPath = raw
	}
	if raw := os.Getenv("RATE_LIMIT_PER_SECOND"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.RateLimitPerSecond = value
		}
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RateLimitBurst = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	return cfg
}

// parseAmounts reads a comma separated list such as "4000,3000,2000,1000".
func parseAmounts(raw string) ([]uint64, bool) {
	parts := strings.Split(raw, ",")
	amounts := make([]uint64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, false
		}
		amounts = append(amounts, value)
	}
	if len(amounts) == 0 {
		return nil, false
	}
	return amounts, true
}
