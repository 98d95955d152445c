package app

import (
	"path/filepath"
	"testing"
)

func TestGetAppConfigDirUsesXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := GetAppConfigDir()
	if err != nil {
		t.Fatalf("GetAppConfigDir failed: %v", err)
	}
	if want := filepath.Join(base, "telemeter-reporter"); dir != want {
		t.Fatalf("expected %q, got %q", want, dir)
	}
}

func TestIsFirstRunOnlyOnce(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if !IsFirstRun() {
		t.Fatal("expected first call to report first run")
	}
	if IsFirstRun() {
		t.Fatal("expected second call to report not first run")
	}
}
