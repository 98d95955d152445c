package reporter

import (
	"fmt"
	"html"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

// ClusterHeader is the first column's title
const ClusterHeader = "Cluster"

// Headers returns the header row: the cluster column followed by a goal
// and a performance column per rule. With tooltips each rule header is an
// HTML fragment showing the rule description on hover.
func Headers(rules []models.Rule, tooltips bool) []string {
	headers := make([]string, 0, 1+2*len(rules))
	headers = append(headers, ClusterHeader)
	for _, r := range rules {
		goal := r.Name + " Goal"
		perf := r.Name + " Perf."
		if tooltips {
			goal = tooltip(goal, r.DescriptionOrDefault())
			perf = tooltip(perf, r.DescriptionOrDefault())
		}
		headers = append(headers, goal, perf)
	}
	return headers
}

func tooltip(label, text string) string {
	return fmt.Sprintf(`<div class="tooltip">%s<span class="tooltiptext">%s</span></div>`,
		html.EscapeString(label), html.EscapeString(text))
}
