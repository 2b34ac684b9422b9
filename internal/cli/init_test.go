package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"budget/internal/config"
	"budget/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if logger.Component() != log.ComponentApp {
		t.Errorf("component = %q", logger.Component())
	}
}

func TestLoadConfig(t *testing.T) {
	v := config.NewViper()
	v.Set("data_backend", "memory")
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "5000" || cfg.DataBackend != "memory" {
		t.Errorf("cfg = %+v", cfg)
	}

	v.Set("port", "http")
	if _, err := LoadConfig(v); err == nil || !strings.Contains(err.Error(), "invalid port") {
		t.Errorf("err = %v", err)
	}
}

func TestOpenBackend(t *testing.T) {
	v := config.NewViper()
	v.Set("data_backend", "sqlite")
	v.Set("sqlite_db_path", filepath.Join(t.TempDir(), "budget.db"))
	v.Set("amqp_url", "")
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	result, err := OpenBackend(context.Background(), cfg, log.New(log.DefaultConfig()))
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer result.Cleanup()
	if err := result.Store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background(), log.New(log.DefaultConfig()))
	cancel()
	<-ctx.Done()
}
