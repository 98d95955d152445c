package reporter

import (
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

// renderTable draws the matrix as a terminal table in one of the text styles
func renderTable(headers []string, matrix *models.Matrix, format Format, colored bool) string {
	var b strings.Builder

	table := tablewriter.NewWriter(&b)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	applyStyle(table, format)

	if matrix != nil {
		for _, row := range matrix.Rows {
			table.Append(textCells(row, format, colored))
		}
	}

	table.Render()
	return b.String()
}

func applyStyle(table *tablewriter.Table, format Format) {
	switch format {
	case FormatPlain:
		table.SetBorder(false)
		table.SetHeaderLine(false)
		table.SetColumnSeparator("")
		table.SetCenterSeparator("")
		table.SetRowSeparator("")
		table.SetTablePadding("  ")
		table.SetNoWhiteSpace(true)
	case FormatSimple:
		table.SetBorder(false)
		table.SetHeaderLine(true)
		table.SetColumnSeparator(" ")
		table.SetCenterSeparator(" ")
		table.SetRowSeparator("-")
	case FormatGrid:
		table.SetBorder(true)
		table.SetRowLine(true)
		table.SetColumnSeparator("|")
		table.SetCenterSeparator("+")
		table.SetRowSeparator("-")
	case FormatFancyGrid:
		table.SetBorder(true)
		table.SetRowLine(true)
		table.SetColumnSeparator("│")
		table.SetCenterSeparator("┼")
		table.SetRowSeparator("─")
	}
}

// IsTerminal reports whether out is an interactive terminal, the only
// place ANSI colours are useful.
func IsTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}
