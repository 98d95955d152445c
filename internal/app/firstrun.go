package app

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	markerFileName = ".initialized"
	appName        = "telemeter-reporter"
)

// GetAppConfigDir returns the path to the application's configuration directory.
func GetAppConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// IsFirstRun reports whether the application has never run for this user.
// The first call creates a marker in the config directory, so later calls
// return false.
func IsFirstRun() bool {
	appConfigDir, err := GetAppConfigDir()
	if err != nil {
		slog.Debug("app config directory unavailable", slog.String("error", err.Error()))
		return false
	}

	markerFilePath := filepath.Join(appConfigDir, markerFileName)
	if _, err := os.Stat(markerFilePath); err == nil {
		return false
	} else if !os.IsNotExist(err) {
		slog.Debug("failed to check first run marker", slog.String("path", markerFilePath), slog.String("error", err.Error()))
		return false
	}

	if err := os.MkdirAll(appConfigDir, 0o755); err != nil {
		slog.Debug("failed to create app config directory", slog.String("path", appConfigDir), slog.String("error", err.Error()))
		return false
	}
	f, err := os.Create(markerFilePath)
	if err != nil {
		slog.Debug("failed to create first run marker", slog.String("path", markerFilePath), slog.String("error", err.Error()))
		return false
	}
	_ = f.Close()
	return true
}
