package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user data directory
const AppName = "crypto-tray-feed"

// DataDir returns the directory for runtime data. A local "_workspace"
// directory wins when present (portable mode); otherwise the OS-standard
// per-user data directory is used.
func DataDir() string {
	localDir := "_workspace"
	if _, err := os.Stat(localDir); err == nil {
		return localDir
	}

	var baseDir string
	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, "Library", "Application Support")
	case "linux":
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			home, _ := os.UserHomeDir()
			baseDir = filepath.Join(home, ".local", "share")
		}
	default:
		return localDir
	}

	return filepath.Join(baseDir, AppName)
}

// DefaultSQLitePath is where the durable cache lives when none is configured
func DefaultSQLitePath() string {
	return filepath.Join(DataDir(), "cache.db")
}

// EnsureDir creates dir with 0755 permissions if missing
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
