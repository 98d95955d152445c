package reporter

import (
	"html/template"
	"strings"

	"github.com/ppiankov/telemeter-reporter/internal/models"
	"github.com/ppiankov/telemeter-reporter/internal/query"
)

// DefaultCSS styles the status classes and header tooltips
const DefaultCSS = `.danger {color: red; font-weight: bold;}
.caution {color: darkorange; font-weight: bold;}
.success {color: green;}
table {border-collapse: collapse;}
th, td {padding: 4px 10px; text-align: center;}
.tooltip {position: relative; display: inline-block; border-bottom: 1px dotted black;}
.tooltip .tooltiptext {visibility: hidden; width: 220px; background-color: #555; color: #fff;
  text-align: center; border-radius: 6px; padding: 5px; position: absolute; z-index: 1;
  bottom: 125%; left: 50%; margin-left: -110px; opacity: 0; transition: opacity 0.3s;}
.tooltip:hover .tooltiptext {visibility: visible; opacity: 1;}`

// DefaultHTML is the document shell. ${title}, ${style}, ${table} and
// ${footer} are substituted; anything else is left as is.
const DefaultHTML = `<!DOCTYPE html>
<html>
    <head>
        <meta charset="utf-8">
        <title>${title}</title>
        <style>
            ${style}
        </style>
    </head>
    <body>
        <h2>${title}</h2>
        ${table}
        <p>${footer}</p>
    </body>
</html>
`

var tableTemplate = template.Must(template.New("table").Parse(`<table>
<thead>
<tr>{{range .Headers}}<th style="text-align: center;">{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td style="text-align: center;">{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>`))

type tableData struct {
	Headers []template.HTML
	Rows    [][]any
}

// renderHTMLTable builds the <table> element. Header and value cells are
// markup produced by this package; cluster names are escaped.
func renderHTMLTable(headers []string, matrix *models.Matrix, colored bool) (string, error) {
	data := tableData{Headers: make([]template.HTML, len(headers))}
	for i, h := range headers {
		if strings.HasPrefix(h, "<div") {
			data.Headers[i] = template.HTML(h)
			continue
		}
		data.Headers[i] = template.HTML(template.HTMLEscapeString(h))
	}

	if matrix != nil {
		for _, row := range matrix.Rows {
			cells := textCells(row, FormatHTML, colored)
			out := make([]any, len(cells))
			out[0] = cells[0]
			for i := 1; i < len(cells); i++ {
				out[i] = template.HTML(cells[i])
			}
			data.Rows = append(data.Rows, out)
		}
	}

	var b strings.Builder
	if err := tableTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// renderHTMLDocument wraps the table into the document shell
func renderHTMLDocument(headers []string, matrix *models.Matrix, opts Options) (string, error) {
	table, err := renderHTMLTable(headers, matrix, opts.Color)
	if err != nil {
		return "", err
	}

	shell := opts.HTML
	if strings.TrimSpace(shell) == "" {
		shell = DefaultHTML
	}
	css := opts.CSS
	if strings.TrimSpace(css) == "" {
		css = DefaultCSS
	}

	return query.SafeSubstitute(shell, map[string]string{
		"title":  opts.Title,
		"style":  css,
		"table":  table,
		"footer": opts.Footer,
	}), nil
}
