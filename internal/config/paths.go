package config

import (
	"os"
	"path/filepath"
)

// BridgePaths contains all paths owned by a ccbridge installation.
type BridgePaths struct {
	Home string // Bridge home directory (~/.ccbridge)
	Lock string // Daemon lock file path
	Logs string // Logs directory
}

// GetBridgePaths returns the ccbridge directory layout.
func GetBridgePaths() BridgePaths {
	home := GetBridgeHome()
	return BridgePaths{
		Home: home,
		Lock: filepath.Join(home, "daemon.lock"),
		Logs: filepath.Join(home, "logs"),
	}
}

// GetBridgeHome returns the ccbridge home directory (~/.ccbridge).
func GetBridgeHome() string {
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".ccbridge")
}

// SwitcherDBPath returns the fixed location of the cc-switch provider
// database (~/.cc-switch/cc-switch.db). The database is owned exclusively
// by the cc-switch application; ccbridge only ever reads it.
func SwitcherDBPath() string {
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".cc-switch", "cc-switch.db")
}

// SettingsPath resolves the assistant settings file to watch.
// Precedence: ~/.claude/settings.json wins when it exists; otherwise
// ~/.claude/claude.json is used when it exists. When neither exists the
// primary path is returned so callers can still report a sensible target.
func SettingsPath() string {
	userHome, _ := os.UserHomeDir()
	claudeDir := filepath.Join(userHome, ".claude")

	primary := filepath.Join(claudeDir, "settings.json")
	if _, err := os.Stat(primary); err == nil {
		return primary
	}

	fallback := filepath.Join(claudeDir, "claude.json")
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}

	return primary
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureBridgeDirs creates the ccbridge directory structure if it does not exist.
func EnsureBridgeDirs() (BridgePaths, error) {
	paths := GetBridgePaths()

	dirs := []string{
		paths.Home,
		paths.Logs,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}
