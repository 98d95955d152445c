package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{name: "Concurrency", got: cfg.Concurrency, want: 4},
		{name: "QueryTimeout", got: cfg.QueryTimeout, want: 2 * time.Minute},
		{name: "QueryRate", got: cfg.QueryRate, want: 10},
		{name: "AdjustDuration", got: cfg.AdjustDuration, want: true},
		{name: "ReferenceTime", got: cfg.ReferenceTime == nil, want: true},
		{name: "OutputDir", got: cfg.OutputDir, want: ""},
		{name: "Format", got: cfg.Format, want: "simple"},
		{name: "Color", got: cfg.Color, want: true},
		{name: "Tooltips", got: cfg.Tooltips, want: false},
		{name: "ServerPort", got: cfg.ServerPort, want: 8080},
		{name: "Verbose", got: cfg.Verbose, want: false},
		{name: "DryRun", got: cfg.DryRun, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, tc.got)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", input: "30s", want: 30 * time.Second},
		{name: "minutes", input: "5m", want: 5 * time.Minute},
		{name: "hours", input: "2h", want: 2 * time.Hour},
		{name: "days", input: "7d", want: 7 * 24 * time.Hour},
		{name: "fallback_go_duration", input: "1.5h", want: time.Duration(1.5 * float64(time.Hour))},
		{name: "invalid", input: "5x", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestParseReferenceTime(t *testing.T) {
	now := time.Date(2020, 1, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: "2020-01-05T00:00:00Z", want: time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339_offset", input: "2020-01-05T02:00:00+02:00", want: time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "days_ago", input: "7d", want: time.Date(2020, 1, 3, 12, 0, 0, 0, time.UTC)},
		{name: "hours_ago", input: "36h", want: time.Date(2020, 1, 9, 0, 0, 0, 0, time.UTC)},
		{name: "empty", input: " ", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
		{name: "negative", input: "-2h", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseReferenceTime(tc.input, now)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.input, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestExcludePatternMatching(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcludeClusters = []string{" test-* ", "", "Legacy"}
	cfg.Normalize()

	if len(cfg.ExcludeClusters) != 2 {
		t.Fatalf("expected empty patterns removed, got %v", cfg.ExcludeClusters)
	}
	if !cfg.IsClusterExcluded("TEST-cluster") {
		t.Fatal("expected TEST-cluster to match test-*")
	}
	if !cfg.IsClusterExcluded("legacy") {
		t.Fatal("expected exact pattern to match case-insensitively")
	}
	if cfg.IsClusterExcluded("prod-1") {
		t.Fatal("did not expect prod-1 to be excluded")
	}
	if cfg.IsClusterExcluded("") {
		t.Fatal("did not expect empty name to be excluded")
	}
}

func TestInvalidGlobFallsBackToExactMatch(t *testing.T) {
	cfg := &Config{ExcludeClusters: []string{"bad[pattern"}}
	if !cfg.IsClusterExcluded("bad[pattern") {
		t.Fatal("expected invalid glob to match literally")
	}
	if cfg.IsClusterExcluded("badp") {
		t.Fatal("did not expect partial match for invalid glob")
	}
}
