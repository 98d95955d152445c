package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
api:
  telemeter:
    url: https://telemeter.example.com/
    token: telemeter-token
  uhc:
    url: https://api.example.com
    token: offline-token
global_vars:
  duration: 28
  job: kubelet
rules:
  - name: api-availability
    query: avg_over_time(up{${sel}, job="${job}"}[${duration}d])
    goal: 0.99
    description: API server uptime
    window: 5m
  - name: etcd
    query: min(up{${sel}})
    goal: 0.95
    duration: 7
exclude_clusters:
  - test-*
title: SLI report
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultConfigFileYAML)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadFileParsesFields(t *testing.T) {
	t.Setenv(EnvTelemeterToken, "")
	t.Setenv(EnvUHCToken, "")
	path := writeConfig(t, t.TempDir(), validConfig)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if got := cfg.API.Telemeter.URL; got != "https://telemeter.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", got)
	}
	if got := cfg.API.UHC.Token; got != "offline-token" {
		t.Fatalf("unexpected uhc token %q", got)
	}
	if got := cfg.GlobalVars["duration"]; got != "28" {
		t.Fatalf("expected duration=28, got %q", got)
	}
	if got := cfg.Title; got != "SLI report" {
		t.Fatalf("unexpected title %q", got)
	}
	if len(cfg.ExcludeClusters) != 1 || cfg.ExcludeClusters[0] != "test-*" {
		t.Fatalf("unexpected exclude_clusters: %v", cfg.ExcludeClusters)
	}

	rules := cfg.ModelRules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	first := rules[0]
	if first.Name != "api-availability" || first.Goal != 0.99 || first.Description != "API server uptime" {
		t.Fatalf("unexpected first rule: %+v", first)
	}
	if first.Vars["window"] != "5m" {
		t.Fatalf("expected extra key to become a var, got %v", first.Vars)
	}
	if first.Vars["name"] != "api-availability" || first.Vars["goal"] != "0.99" {
		t.Fatalf("expected name and goal exposed as vars, got %v", first.Vars)
	}
	if _, ok := first.Vars["query"]; ok {
		t.Fatal("query must not be exposed as a var")
	}

	days, ok, err := rules[1].Duration()
	if err != nil || !ok || days != 7 {
		t.Fatalf("expected rule duration 7, got %d %v %v", days, ok, err)
	}
}

func TestLoadFileEnvOverridesTokens(t *testing.T) {
	t.Setenv(EnvTelemeterToken, "from-env")
	t.Setenv(EnvUHCToken, "uhc-env")
	path := writeConfig(t, t.TempDir(), validConfig)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.API.Telemeter.Token != "from-env" || cfg.API.UHC.Token != "uhc-env" {
		t.Fatalf("expected env tokens, got %+v", cfg.API)
	}
}

func TestLoadFileRejectsInvalidConfig(t *testing.T) {
	t.Setenv(EnvTelemeterToken, "")
	t.Setenv(EnvUHCToken, "")

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing_api",
			content: `
rules:
  - {name: a, query: up, goal: 0.9}
`,
			want: "api",
		},
		{
			name: "rule_without_goal",
			content: `
api:
  telemeter: {url: https://t, token: x}
  uhc: {url: https://u, token: y}
rules:
  - {name: a, query: up}
`,
			want: "goal",
		},
		{
			name: "goal_out_of_range",
			content: `
api:
  telemeter: {url: https://t, token: x}
  uhc: {url: https://u, token: y}
rules:
  - {name: a, query: up, goal: 99}
`,
			want: "goal",
		},
		{
			name: "empty_token",
			content: `
api:
  telemeter: {url: https://t, token: ""}
  uhc: {url: https://u, token: y}
rules:
  - {name: a, query: up, goal: 0.9}
`,
			want: EnvTelemeterToken,
		},
		{
			name: "duplicate_rule",
			content: `
api:
  telemeter: {url: https://t, token: x}
  uhc: {url: https://u, token: y}
rules:
  - {name: a, query: up, goal: 0.9}
  - {name: a, query: down, goal: 0.9}
`,
			want: "duplicate",
		},
		{
			name: "bad_duration",
			content: `
api:
  telemeter: {url: https://t, token: x}
  uhc: {url: https://u, token: y}
global_vars:
  duration: soon
rules:
  - {name: a, query: up, goal: 0.9}
`,
			want: "duration",
		},
		{
			name:    "not_yaml",
			content: "api: [unterminated",
			want:    "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.content)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error to mention %q, got %v", tc.want, err)
			}
		})
	}
}

func TestAutoLoadFilePrefersCWD(t *testing.T) {
	t.Setenv(EnvTelemeterToken, "")
	t.Setenv(EnvUHCToken, "")
	cwd := t.TempDir()
	home := t.TempDir()

	writeConfig(t, cwd, validConfig)
	writeConfig(t, home, strings.Replace(validConfig, "title: SLI report", "title: from home", 1))

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Chdir(cwd)

	cfg, path, err := AutoLoadFile()
	if err != nil {
		t.Fatalf("AutoLoadFile failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config file to be loaded")
	}
	if cfg.Title != "SLI report" {
		t.Fatalf("expected cwd config to win, got %q", cfg.Title)
	}
	if path != DefaultConfigFileYAML {
		t.Fatalf("expected returned path to be %q, got %q", DefaultConfigFileYAML, path)
	}
}

func TestAutoLoadFileFindsAppConfigDir(t *testing.T) {
	t.Setenv(EnvTelemeterToken, "")
	t.Setenv(EnvUHCToken, "")
	home := t.TempDir()
	xdg := filepath.Join(home, ".config")
	appDir := filepath.Join(xdg, "telemeter-reporter")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(appDir, AppConfigFileName)
	if err := os.WriteFile(want, []byte(validConfig), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Chdir(t.TempDir())

	cfg, path, err := AutoLoadFile()
	if err != nil {
		t.Fatalf("AutoLoadFile failed: %v", err)
	}
	if cfg == nil || path != want {
		t.Fatalf("expected %q to be loaded, got %q", want, path)
	}
}

func TestLoadFirstExistingFileNoMatch(t *testing.T) {
	cfg, path, err := LoadFirstExistingFile([]string{
		filepath.Join(t.TempDir(), "missing-1.yaml"),
		filepath.Join(t.TempDir(), "missing-2.yaml"),
	})
	if err != nil {
		t.Fatalf("expected no error when no files found, got %v", err)
	}
	if cfg != nil || path != "" {
		t.Fatalf("expected nil config and empty path, got cfg=%v path=%q", cfg, path)
	}
}

func TestLoadFirstExistingFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := LoadFirstExistingFile([]string{dir}); err == nil {
		t.Fatal("expected error for directory path")
	}
}
