package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the directory holding the database, state file and logs.
// RANSOMWATCH_DATA_DIR overrides the platform default.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/ransomwatch/
//   - Linux:   $XDG_DATA_HOME/ransomwatch or ~/.local/share/ransomwatch/
//   - Windows: %APPDATA%\ransomwatch\
func DataDir() string {
	if envDir := os.Getenv("RANSOMWATCH_DATA_DIR"); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".ransomwatch"
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "ransomwatch")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "ransomwatch")
		}
		return filepath.Join(home, "AppData", "Roaming", "ransomwatch")
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "ransomwatch")
		}
		return filepath.Join(home, ".local", "share", "ransomwatch")
	}
}

// ConfigDir returns the directory searched for config.toml.
func ConfigDir() string {
	if runtime.GOOS == "linux" {
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "ransomwatch")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "ransomwatch")
		}
	}
	return DataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}
