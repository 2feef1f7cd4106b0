package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/fedesuarez16/opting-sub000/internal/constants"
)

// LogDirectory returns the directory for opting log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\opting\logs
//   - Unix: ~/.config/opting/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), constants.AppName+"-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, constants.AppName, "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName+"-logs")
		}
		return filepath.Join(homeDir, ".config", constants.AppName, "logs")
	}
	return filepath.Join(configDir, constants.AppName, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// LogFilePath returns the path of the named log file inside LogDirectory.
func LogFilePath(name string) string {
	return filepath.Join(LogDirectory(), name+".log")
}
