package models

import (
	"encoding/json"
	"errors"
	"time"
)

// SLIResult is the outcome of resolving one rule for one cluster.
// A non-nil Err means the value is unavailable.
type SLIResult struct {
	Value float64
	Err   error
}

// SLIValue returns a successful result (0-100 scale)
func SLIValue(v float64) SLIResult {
	return SLIResult{Value: v}
}

// SLIFailure returns an unavailable result carrying its cause
func SLIFailure(err error) SLIResult {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return SLIResult{Err: err}
}

// OK reports whether the result holds a value
func (r SLIResult) OK() bool {
	return r.Err == nil
}

// MarshalJSON encodes failures as null
func (r SLIResult) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// Cell holds the goal and measured value for one rule
type Cell struct {
	Rule  string    `json:"rule"`
	Goal  float64   `json:"goal"` // 0-100 scale
	SLI   SLIResult `json:"sli"`
	Error string    `json:"error,omitempty"`
	Query string    `json:"query,omitempty"`
}

// Row is one cluster's line in the compliance matrix
type Row struct {
	Cluster           Cluster `json:"cluster"`
	DisplayName       string  `json:"display_name"`
	EffectiveDuration int     `json:"effective_duration,omitempty"`
	Capped            bool    `json:"capped"`
	Cells             []Cell  `json:"cells"`
}

// Matrix is the cluster x rule compliance matrix, kept in input order
type Matrix struct {
	Rows []Row `json:"rows"`
}

// Lookup returns the cell for a cluster display name and rule name
func (m *Matrix) Lookup(cluster, rule string) (Cell, bool) {
	if m == nil {
		return Cell{}, false
	}
	for _, row := range m.Rows {
		if row.DisplayName != cluster && row.Cluster.Name != cluster {
			continue
		}
		for _, cell := range row.Cells {
			if cell.Rule == rule {
				return cell, true
			}
		}
	}
	return Cell{}, false
}

// RuleNames returns the rule names in column order
func (m *Matrix) RuleNames() []string {
	if m == nil || len(m.Rows) == 0 {
		return nil
	}
	names := make([]string, len(m.Rows[0].Cells))
	for i, cell := range m.Rows[0].Cells {
		names[i] = cell.Rule
	}
	return names
}

// FailedCells counts cells whose SLI could not be resolved
func (m *Matrix) FailedCells() int {
	if m == nil {
		return 0
	}
	failed := 0
	for _, row := range m.Rows {
		for _, cell := range row.Cells {
			if !cell.SLI.OK() {
				failed++
			}
		}
	}
	return failed
}

// Report is the complete JSON output structure
type Report struct {
	Tool      string   `json:"tool"`
	Version   string   `json:"version"`
	Timestamp string   `json:"timestamp"`
	Metadata  Metadata `json:"metadata"`
	Rules     []Rule   `json:"rules"`
	Rows      []Row    `json:"rows"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt        time.Time  `json:"generated_at"`
	ReferenceTime      *time.Time `json:"reference_time,omitempty"`
	Search             string     `json:"search,omitempty"`
	ClusterCount       int        `json:"cluster_count"`
	RuleCount          int        `json:"rule_count"`
	FailedQueries      int        `json:"failed_queries"`
	GenerationDuration string     `json:"generation_duration,omitempty"`
}
