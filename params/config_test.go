package params

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.APIAddr != ":8080" {
		t.Errorf("APIAddr = %s", cfg.APIAddr)
	}
	if cfg.Settlement.DrainDelay != 500*time.Millisecond {
		t.Errorf("DrainDelay = %v", cfg.Settlement.DrainDelay)
	}
	if cfg.Settlement.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", cfg.Settlement.MaxAttempts)
	}
	if cfg.StatsHeartbeat != 5*time.Second {
		t.Errorf("StatsHeartbeat = %v", cfg.StatsHeartbeat)
	}
	if !cfg.Matching.AutoMatch {
		t.Error("AutoMatch disabled by default")
	}
	if !cfg.Matching.DustEpsilon.IsPositive() {
		t.Error("DustEpsilon must be positive")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("DRAIN_DELAY_MS", "250")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "7")
	t.Setenv("DUST_EPSILON", "0.001")
	t.Setenv("AUTO_MATCH", "false")

	cfg := LoadFromEnv("")

	if cfg.APIAddr != ":9999" {
		t.Errorf("APIAddr = %s", cfg.APIAddr)
	}
	if cfg.Settlement.DrainDelay != 250*time.Millisecond {
		t.Errorf("DrainDelay = %v", cfg.Settlement.DrainDelay)
	}
	if cfg.Settlement.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d", cfg.Settlement.MaxAttempts)
	}
	if cfg.Matching.DustEpsilon.String() != "0.001" {
		t.Errorf("DustEpsilon = %s", cfg.Matching.DustEpsilon)
	}
	if cfg.Matching.AutoMatch {
		t.Error("AUTO_MATCH=false not applied")
	}
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("DRAIN_DELAY_MS", "not-a-number")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "-3")
	t.Setenv("DUST_EPSILON", "-1")

	cfg := LoadFromEnv("")
	def := Default()

	if cfg.Settlement.DrainDelay != def.Settlement.DrainDelay {
		t.Errorf("DrainDelay = %v, want default", cfg.Settlement.DrainDelay)
	}
	if cfg.Settlement.MaxAttempts != def.Settlement.MaxAttempts {
		t.Errorf("MaxAttempts = %d, want default", cfg.Settlement.MaxAttempts)
	}
	if !cfg.Matching.DustEpsilon.Equal(def.Matching.DustEpsilon) {
		t.Errorf("DustEpsilon = %s, want default", cfg.Matching.DustEpsilon)
	}
}
