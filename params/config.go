package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Chain struct {
	RPCEndpoint string
	ProgramID   string
	KeypairPath string
	// SubmitTimeout bounds one settlement submission plus confirmation wait.
	// The reconciler reports an Unknown failure if exceeded.
	SubmitTimeout time.Duration
}

type Matching struct {
	// DustEpsilon is the remaining size at or below which an order is
	// treated as fully filled. A heuristic threshold, not a protocol
	// constant; comparisons are always <=, never float equality.
	DustEpsilon decimal.Decimal
	AutoMatch   bool
}

type Settlement struct {
	DrainDelay  time.Duration // pause between consecutive submissions
	MaxAttempts int           // attempts before a match is dead-lettered
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type Config struct {
	APIAddr        string
	LogFile        string
	JournalPath    string
	StatsHeartbeat time.Duration
	Chain          Chain
	Matching       Matching
	Settlement     Settlement
}

func Default() Config {
	return Config{
		APIAddr:        ":8080",
		LogFile:        "data/matcher.log",
		JournalPath:    "data/journal",
		StatsHeartbeat: 5 * time.Second,
		Chain: Chain{
			RPCEndpoint:   "https://api.devnet.solana.com",
			ProgramID:     "4sF9KPj241iRwnyGdYkyTvfDQGKE8zmWBWVidfhfc7Yi",
			KeypairPath:   "keys/matcher.json",
			SubmitTimeout: 30 * time.Second,
		},
		Matching: Matching{
			DustEpsilon: decimal.RequireFromString("0.0001"),
			AutoMatch:   true,
		},
		Settlement: Settlement{
			DrainDelay:  500 * time.Millisecond,
			MaxAttempts: 5,
			BackoffBase: 1 * time.Second,
			BackoffCap:  30 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.APIAddr = getEnv("API_ADDR", cfg.APIAddr)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.JournalPath = getEnv("JOURNAL_PATH", cfg.JournalPath)

	cfg.Chain.RPCEndpoint = getEnv("SOLANA_RPC", cfg.Chain.RPCEndpoint)
	cfg.Chain.ProgramID = getEnv("PROGRAM_ID", cfg.Chain.ProgramID)
	cfg.Chain.KeypairPath = getEnv("MATCHER_KEYPAIR", cfg.Chain.KeypairPath)

	if d, ok := envMillis("SUBMIT_TIMEOUT_MS"); ok {
		cfg.Chain.SubmitTimeout = d
	}
	if d, ok := envMillis("DRAIN_DELAY_MS"); ok {
		cfg.Settlement.DrainDelay = d
	}
	if d, ok := envMillis("STATS_HEARTBEAT_MS"); ok {
		cfg.StatsHeartbeat = d
	}

	if v := os.Getenv("SETTLE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Settlement.MaxAttempts = n
		}
	}
	if v := os.Getenv("DUST_EPSILON"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.Matching.DustEpsilon = d
		}
	}
	if v := os.Getenv("AUTO_MATCH"); v != "" {
		cfg.Matching.AutoMatch = v == "true"
	}

	return cfg
}

func envMillis(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
