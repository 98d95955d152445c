package query

import (
	"fmt"
	"strconv"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

// SelectorVar is the template variable that receives the cluster selector
const SelectorVar = "sel"

// Selector returns the query fragment that identifies one cluster's series
func Selector(externalID string) string {
	return fmt.Sprintf("_id='%s'", externalID)
}

// BuildVars merges template variables. Later sources win on collision:
// global < rule-local < selector < duration override.
func BuildVars(global models.GlobalVars, rule map[string]string, selector string, durationOverride *int) map[string]string {
	vars := make(map[string]string, len(global)+len(rule)+2)
	for k, v := range global {
		vars[k] = v
	}
	for k, v := range rule {
		vars[k] = v
	}
	vars[SelectorVar] = selector
	if durationOverride != nil {
		vars[models.DurationVar] = strconv.Itoa(*durationOverride)
	}
	return vars
}

// Build renders a rule's query with the given variables
func Build(rule models.Rule, vars map[string]string) (string, error) {
	q, err := Substitute(rule.Query, vars)
	if err != nil {
		return "", fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	return q, nil
}
