package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDirectory returns the per-user data directory for sgsync.
// It does not create the directory; the components writing there do.
func DataDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "sgsync")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "sgsync")
		}
		return filepath.Join(home, "AppData", "Roaming", "sgsync")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "sgsync")
		}
		return filepath.Join(home, ".local", "share", "sgsync")
	}
}
