package reporter

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

// renderJSON encodes the report envelope with the matrix rows
func renderJSON(matrix *models.Matrix, envelope *models.Report) (string, error) {
	report := models.Report{}
	if envelope != nil {
		report = *envelope
	}
	if report.Rules == nil {
		report.Rules = []models.Rule{}
	}
	report.Rows = []models.Row{}
	if matrix != nil && matrix.Rows != nil {
		report.Rows = matrix.Rows
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
