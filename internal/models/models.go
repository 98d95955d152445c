package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DurationVar is the template variable holding a query window in days
const DurationVar = "duration"

// Cluster represents a cluster record returned by the cluster directory
type Cluster struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ExternalID        string    `json:"external_id"`
	CreationTimestamp time.Time `json:"creation_timestamp"`
}

// WithSuffix returns a copy of the cluster with suffix appended to its name.
// The receiver is left untouched.
func (c Cluster) WithSuffix(suffix string) Cluster {
	c.Name += suffix
	return c
}

// Age returns how long the cluster has existed at the reference time
func (c Cluster) Age(reference time.Time) time.Duration {
	if c.CreationTimestamp.IsZero() {
		return 0
	}
	return reference.Sub(c.CreationTimestamp)
}

// Rule is a single SLI rule loaded from configuration
type Rule struct {
	Name        string            `json:"name"`
	Query       string            `json:"query"`
	Goal        float64           `json:"goal"` // fraction in [0,1]
	Description string            `json:"description,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
}

// GoalPercent returns the goal on the 0-100 scale
func (r Rule) GoalPercent() float64 {
	return r.Goal * 100
}

// DescriptionOrDefault returns the description, or "n/a" when unset
func (r Rule) DescriptionOrDefault() string {
	if d := strings.TrimSpace(r.Description); d != "" {
		return d
	}
	return "n/a"
}

// Duration returns the rule-local duration override in days, if any
func (r Rule) Duration() (int, bool, error) {
	raw, ok := r.Vars[DurationVar]
	if !ok {
		return 0, false, nil
	}
	days, err := ParseDays(raw)
	if err != nil {
		return 0, false, fmt.Errorf("rule %q: %w", r.Name, err)
	}
	return days, true, nil
}

// GlobalVars are template variables shared by every rule
type GlobalVars map[string]string

// Duration returns the global duration in days, if any
func (g GlobalVars) Duration() (int, bool, error) {
	raw, ok := g[DurationVar]
	if !ok {
		return 0, false, nil
	}
	days, err := ParseDays(raw)
	if err != nil {
		return 0, false, fmt.Errorf("global vars: %w", err)
	}
	return days, true, nil
}

// ParseDays parses a whole number of days
func ParseDays(raw string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: expected whole days", raw)
	}
	if days < 0 {
		return 0, fmt.Errorf("invalid duration %q: must be non-negative", raw)
	}
	return days, nil
}
