package reporter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/telemeter-reporter/internal/models"
	"github.com/ppiankov/telemeter-reporter/internal/scorer"
)

// Unavailable is shown for cells without a value
const Unavailable = "--"

const (
	valueDecimals = 3
	valueWidth    = 6
)

var statusColors = map[scorer.Status]*color.Color{
	scorer.StatusDanger:  forced(color.New(color.Bold, color.FgRed)),
	scorer.StatusCaution: forced(color.New(color.Bold, color.FgYellow)),
	scorer.StatusSuccess: forced(color.New(color.Reset, color.FgGreen)),
}

// forced ignores NO_COLOR and terminal detection; the caller decides.
func forced(c *color.Color) *color.Color {
	c.EnableColor()
	return c
}

// FormatValue renders a percentage with three decimals, truncated rather
// than rounded, and at most six characters wide (99.98765 -> "99.987").
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', 10, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s) > dot+1+valueDecimals {
		s = s[:dot+1+valueDecimals]
	}
	if len(s) > valueWidth {
		s = s[:valueWidth]
	}
	return s
}

// FormatSLI renders a measured value for the given output format. Failed
// results render as "--" and are never coloured.
func FormatSLI(result models.SLIResult, goal float64, format Format, colored bool) string {
	if !result.OK() {
		return Unavailable
	}
	if !colored || format == FormatCSV || format == FormatJSON {
		return percent(result.Value, format)
	}

	status := scorer.Classify(result.Value, goal)
	if format == FormatHTML {
		return fmt.Sprintf("<span class='%s'>%s</span>", status, percent(result.Value, format))
	}
	return statusColors[status].Sprint(percent(result.Value, format))
}

// FormatGoal renders a goal cell. Goals are never coloured.
func FormatGoal(goal float64, format Format) string {
	return percent(goal, format)
}

func percent(v float64, format Format) string {
	if format == FormatHTML {
		return FormatValue(v) + "&#37;"
	}
	return FormatValue(v) + "%"
}

// textCells returns the display cells of one row
func textCells(row models.Row, format Format, colored bool) []string {
	cells := make([]string, 0, 1+2*len(row.Cells))
	cells = append(cells, row.DisplayName)
	for _, cell := range row.Cells {
		cells = append(cells,
			FormatGoal(cell.Goal, format),
			FormatSLI(cell.SLI, cell.Goal, format, colored),
		)
	}
	return cells
}
