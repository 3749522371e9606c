package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waysystem.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/waysystem/data"
  sqlite_path: "/tmp/waysystem/waysystem.db"
server:
  host: "0.0.0.0"
  port: 8080
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
logging:
  level: "info"
  format: "json"
gather:
  start_date: "2018-01-01"
  batch_size: 500
  max_workers: 8
  rate_limit_per_min: 200
backtest:
  fee_rate: 0.0003
  max_positions: 5
  initial_capital: 100000
risk:
  max_sector_weight: 0.4
  max_var_95: 5.0
  max_hhi: 0.5
  lookback_days: 250
`)

	// Clear any environment overrides that might interfere.
	os.Unsetenv("DATA_DIR")
	os.Unsetenv("SQLITE_PATH")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("ALPACA_API_KEY")
	os.Unsetenv("ALPACA_API_SECRET")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/waysystem/data" {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Backtest.FeeRate != 0.0003 {
		t.Errorf("FeeRate = %v, want 0.0003", cfg.Backtest.FeeRate)
	}
	if cfg.Risk.MaxSectorWeight != 0.4 {
		t.Errorf("MaxSectorWeight = %v, want 0.4", cfg.Risk.MaxSectorWeight)
	}
	if cfg.Gather.StartDate != "2018-01-01" {
		t.Errorf("StartDate = %q", cfg.Gather.StartDate)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/data"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backtest.MaxPositions != 5 {
		t.Errorf("default MaxPositions = %d, want 5", cfg.Backtest.MaxPositions)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("default InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Risk.LookbackDays != 250 {
		t.Errorf("default LookbackDays = %d, want 250", cfg.Risk.LookbackDays)
	}
	if cfg.Gather.MaxWorkers != 4 {
		t.Errorf("default MaxWorkers = %d, want 4", cfg.Gather.MaxWorkers)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/from/file"
  sqlite_path: "/from/file.db"
logging:
  level: "info"
`)

	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, want env override /from/env", cfg.Storage.DataDir)
	}
	if cfg.Storage.SQLitePath != "/from/file.db" {
		t.Errorf("SQLitePath = %q, want file value", cfg.Storage.SQLitePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}
