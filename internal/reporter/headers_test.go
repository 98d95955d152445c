package reporter

import (
	"strings"
	"testing"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

func TestHeaders(t *testing.T) {
	rules := []models.Rule{{Name: "up"}, {Name: "api", Description: "API <latency>"}}

	got := Headers(rules, false)
	want := []string{"Cluster", "up Goal", "up Perf.", "api Goal", "api Perf."}
	if len(got) != 1+2*len(rules) {
		t.Fatalf("expected %d headers, got %d", 1+2*len(rules), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if n := len(Headers(nil, false)); n != 1 {
		t.Fatalf("expected only the cluster header, got %d", n)
	}
}

func TestHeadersTooltips(t *testing.T) {
	rules := []models.Rule{{Name: "up"}, {Name: "api", Description: "API <latency>"}}
	got := Headers(rules, true)

	if got[0] != ClusterHeader {
		t.Fatalf("cluster header must stay plain, got %q", got[0])
	}
	if !strings.Contains(got[1], `<span class="tooltiptext">n/a</span>`) {
		t.Fatalf("expected n/a tooltip for missing description, got %q", got[1])
	}
	if !strings.Contains(got[4], "API &lt;latency&gt;") || !strings.HasPrefix(got[4], `<div class="tooltip">api Perf.`) {
		t.Fatalf("expected escaped tooltip, got %q", got[4])
	}
}
