package store

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user data directory.
const AppName = "horizon"

// DefaultDataDir returns the OS-appropriate default data directory for horizon.
// It holds the local cache, config.yaml and the TUI log.
//
//   - macOS:   ~/Library/Application Support/horizon
//   - Linux:   $XDG_DATA_HOME/horizon (fallback ~/.local/share/horizon)
//   - Windows: %LOCALAPPDATA%\horizon (fallback %APPDATA%\horizon)
func DefaultDataDir() string {
	return defaultDataDirForOS(runtime.GOOS)
}

func defaultDataDirForOS(goos string) string {
	home, _ := os.UserHomeDir()

	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, AppName)
		}
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, AppName)
		}
		return filepath.Join(home, AppName)
	default: // linux, freebsd, etc.
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, AppName)
		}
		return filepath.Join(home, ".local", "share", AppName)
	}
}
