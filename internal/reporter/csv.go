package reporter

import (
	"encoding/csv"
	"strings"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

// renderCSV writes the header row followed by one record per cluster.
// Cells carry the same text as an uncoloured table.
func renderCSV(headers []string, matrix *models.Matrix) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(headers); err != nil {
		return "", err
	}
	if matrix != nil {
		for _, row := range matrix.Rows {
			if err := w.Write(textCells(row, FormatCSV, false)); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}
