package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// DefaultListenAddr is the loopback address the daemon binds to.
	DefaultListenAddr = "127.0.0.1:7317"

	// DefaultDevServerOrigin is the dev-mode UI origin used when neither the
	// config file nor CCBRIDGE_DEV_SERVER overrides it.
	DefaultDevServerOrigin = "http://localhost:5173"

	// DefaultDebounceWindow is the file-change rate-limit window.
	DefaultDebounceWindow = 500 * time.Millisecond

	// devServerEnv overrides the dev server origin at runtime.
	devServerEnv = "CCBRIDGE_DEV_SERVER"
)

// fileConfig mirrors the on-disk TOML layout of ~/.ccbridge/config.toml.
type fileConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	DevMode         bool   `toml:"dev_mode"`
	DevServerOrigin string `toml:"dev_server_origin"`
	DebounceMS      int    `toml:"debounce_ms"`
}

// Config holds daemon settings resolved once at startup. Components receive
// it by value and never re-read the file.
type Config struct {
	ListenAddr      string
	DevMode         bool
	DevServerOrigin string
	DebounceWindow  time.Duration

	SwitcherDB string // cc-switch provider database path
	Settings   string // assistant settings file path (resolved with fallback)
}

// Load resolves the daemon configuration: defaults, then the optional
// config.toml, then environment overrides. A missing config file is the
// normal case and is not an error.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      DefaultListenAddr,
		DevServerOrigin: DefaultDevServerOrigin,
		DebounceWindow:  DefaultDebounceWindow,
		SwitcherDB:      SwitcherDBPath(),
		Settings:        SettingsPath(),
	}

	path := filepath.Join(GetBridgeHome(), "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	cfg.DevMode = fc.DevMode
	if fc.DevServerOrigin != "" {
		cfg.DevServerOrigin = fc.DevServerOrigin
	}
	if fc.DebounceMS > 0 {
		cfg.DebounceWindow = time.Duration(fc.DebounceMS) * time.Millisecond
	}

	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if origin := os.Getenv(devServerEnv); origin != "" {
		cfg.DevServerOrigin = origin
	}
	return cfg
}
