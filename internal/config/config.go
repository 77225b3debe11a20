// Package config resolves the on-disk directories Surge uses for its
// SQLite resume store, debug logs, and lock file, and loads user-facing
// runtime settings: GetSurgeDir/GetLogsDir/EnsureDirs over an XDG-aware
// layout honoring XDG_CONFIG_HOME.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "surge"

// GetSurgeDir returns the root config directory for Surge: honors
// XDG_CONFIG_HOME when set (on any OS), then APPDATA on Windows, and falls
// back to ~/.config/surge otherwise (including macOS).
func GetSurgeDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appDirName)
	}
	return filepath.Join(home, ".config", appDirName)
}

// GetLogsDir returns the debug log directory under GetSurgeDir.
func GetLogsDir() string {
	return filepath.Join(GetSurgeDir(), "logs")
}

// GetDBPath returns the path to the resume-state SQLite database.
func GetDBPath() string {
	return filepath.Join(GetSurgeDir(), "surge.db")
}

// EnsureDirs creates the Surge config and logs directories if missing.
func EnsureDirs() error {
	if err := os.MkdirAll(GetSurgeDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(GetLogsDir(), 0o755)
}

// Settings are the user-tunable defaults persisted as settings.json
// under GetSurgeDir.
type Settings struct {
	DefaultThreads   int    `json:"default_threads"`
	DefaultOutputDir string `json:"default_output_dir"`
	MaxTaskRetries   int    `json:"max_task_retries"`
	UserAgent        string `json:"user_agent"`
}

// DefaultSettings returns the built-in defaults used when no
// settings.json exists yet.
func DefaultSettings() Settings {
	return Settings{
		DefaultThreads: 4,
		MaxTaskRetries: 5,
	}
}

func settingsPath() string {
	return filepath.Join(GetSurgeDir(), "settings.json")
}

// LoadSettings reads settings.json, falling back to DefaultSettings if
// it doesn't exist or is malformed.
func LoadSettings() Settings {
	data, err := os.ReadFile(settingsPath())
	if err != nil {
		return DefaultSettings()
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings()
	}
	return s
}

// SaveSettings writes s to settings.json, creating the config dir first.
func SaveSettings(s Settings) error {
	if err := EnsureDirs(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsPath(), data, 0o644)
}
