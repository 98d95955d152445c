package scorer

import (
	"github.com/ppiankov/telemeter-reporter/internal/models"
)

// CautionThreshold is the margin (percentage points, 0-100 scale) above the
// goal that is still reported as caution.
const CautionThreshold = 0.01

// Status classifies a measured SLI against its goal
type Status string

const (
	StatusDanger      Status = "danger"
	StatusCaution     Status = "caution"
	StatusSuccess     Status = "success"
	StatusUnavailable Status = "unavailable"
)

// Classify returns the status of value against goal (both 0-100 scale)
func Classify(value, goal float64) Status {
	diff := value - goal
	if diff < 0 {
		return StatusDanger // Below goal
	} else if diff < CautionThreshold {
		return StatusCaution // Meets goal with almost no margin
	}
	return StatusSuccess
}

// ClassifyResult is Classify for a possibly unavailable result
func ClassifyResult(result models.SLIResult, goal float64) Status {
	if !result.OK() {
		return StatusUnavailable
	}
	return Classify(result.Value, goal)
}

// Summary counts matrix cells per status
type Summary struct {
	Success     int
	Caution     int
	Danger      int
	Unavailable int
}

// Total returns the number of classified cells
func (s Summary) Total() int {
	return s.Success + s.Caution + s.Danger + s.Unavailable
}

// Summarize classifies every cell of the matrix
func Summarize(m *models.Matrix) Summary {
	var s Summary
	if m == nil {
		return s
	}
	for _, row := range m.Rows {
		for _, cell := range row.Cells {
			switch ClassifyResult(cell.SLI, cell.Goal) {
			case StatusSuccess:
				s.Success++
			case StatusCaution:
				s.Caution++
			case StatusDanger:
				s.Danger++
			default:
				s.Unavailable++
			}
		}
	}
	return s
}
