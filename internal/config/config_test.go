package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	setHome(t)
	t.Setenv(devServerEnv, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("listen addr = %s, want %s", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.DevServerOrigin != DefaultDevServerOrigin {
		t.Errorf("dev server origin = %s, want %s", cfg.DevServerOrigin, DefaultDevServerOrigin)
	}
	if cfg.DebounceWindow != DefaultDebounceWindow {
		t.Errorf("debounce = %v, want %v", cfg.DebounceWindow, DefaultDebounceWindow)
	}
	if cfg.DevMode {
		t.Error("dev mode should default to false")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := setHome(t)
	t.Setenv(devServerEnv, "")

	bridgeDir := filepath.Join(home, ".ccbridge")
	if err := os.MkdirAll(bridgeDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `
listen_addr = "127.0.0.1:9999"
dev_mode = true
dev_server_origin = "http://localhost:3000"
debounce_ms = 750
`
	if err := os.WriteFile(filepath.Join(bridgeDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("listen addr = %s", cfg.ListenAddr)
	}
	if !cfg.DevMode {
		t.Error("expected dev mode enabled")
	}
	if cfg.DevServerOrigin != "http://localhost:3000" {
		t.Errorf("dev server origin = %s", cfg.DevServerOrigin)
	}
	if cfg.DebounceWindow != 750*time.Millisecond {
		t.Errorf("debounce = %v", cfg.DebounceWindow)
	}
}

func TestLoadEnvOverridesDevServer(t *testing.T) {
	setHome(t)
	t.Setenv(devServerEnv, "http://localhost:4444")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DevServerOrigin != "http://localhost:4444" {
		t.Errorf("dev server origin = %s, want env override", cfg.DevServerOrigin)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	home := setHome(t)

	bridgeDir := filepath.Join(home, ".ccbridge")
	if err := os.MkdirAll(bridgeDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bridgeDir, "config.toml"), []byte("not toml ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}
