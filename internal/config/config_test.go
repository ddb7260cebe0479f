package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "TRANSACTION_EVENT_EXCHANGE")
	unsetEnvWithCleanup(t, "DAILY_DEBIT_LIMIT_MINOR")
	unsetEnvWithCleanup(t, "DAILY_DEBIT_LIMIT")
	unsetEnvWithCleanup(t, "IDEMPOTENCY_CACHE_TTL_MINUTES")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default server port 8080, got %q", cfg.ServerPort)
	}
	if cfg.EventExchange != "ledger.events" {
		t.Fatalf("expected default event exchange, got %q", cfg.EventExchange)
	}
	if cfg.DailyDebitLimitMinor != 20000000 {
		t.Fatalf("expected default daily debit limit, got %d", cfg.DailyDebitLimitMinor)
	}
	if cfg.IdempotencyCacheTTLMin != 1440 {
		t.Fatalf("expected default idempotency cache TTL, got %d", cfg.IdempotencyCacheTTLMin)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_DailyDebitLimitMajorUnitsAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "DAILY_DEBIT_LIMIT_MINOR")
	setEnvWithCleanup(t, "DAILY_DEBIT_LIMIT", "150000.50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DailyDebitLimitMinor != 15000050 {
		t.Fatalf("expected major-unit alias to convert to minor units, got %d", cfg.DailyDebitLimitMinor)
	}
}

func TestLoadConfig_NegativeLimitDisablesCeiling(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "DAILY_DEBIT_LIMIT")
	setEnvWithCleanup(t, "DAILY_DEBIT_LIMIT_MINOR", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DailyDebitLimitMinor != 0 {
		t.Fatalf("expected negative limit coerced to zero, got %d", cfg.DailyDebitLimitMinor)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
