package reporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ppiankov/telemeter-reporter/internal/models"
	"github.com/ppiankov/telemeter-reporter/pkg/config"
)

// Options control how a matrix is rendered
type Options struct {
	Format Format
	Color  bool
	Title  string
	Footer string
	// CSS and HTML replace the default stylesheet and document shell.
	CSS  string
	HTML string
	// Report supplies tool and metadata fields for JSON output.
	Report *models.Report
}

// NewOptions builds render options from runtime and file configuration
func NewOptions(cfg *config.Config, format Format) Options {
	opts := Options{
		Format: format,
		Color:  cfg.Color,
		Title:  cfg.Title,
		Footer: cfg.Footer,
	}
	if cfg.File != nil {
		opts.CSS = cfg.File.CSS
		opts.HTML = cfg.File.HTML
		if opts.Title == "" {
			opts.Title = cfg.File.Title
		}
		if opts.Footer == "" {
			opts.Footer = cfg.File.Footer
		}
	}
	return opts
}

// Render formats the matrix. The output depends only on its arguments.
func Render(headers []string, matrix *models.Matrix, opts Options) (string, error) {
	switch opts.Format {
	case FormatPlain, FormatSimple, FormatGrid, FormatFancyGrid:
		return renderTable(headers, matrix, opts.Format, opts.Color), nil
	case FormatHTML:
		return renderHTMLDocument(headers, matrix, opts)
	case FormatCSV:
		return renderCSV(headers, matrix)
	case FormatJSON:
		return renderJSON(matrix, opts.Report)
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format)
	}
}

// Write stores a rendered report as report.<ext> in dir and returns its path
func Write(dir string, format Format, rendered string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, "report."+format.Extension())
	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(outputPath), err)
	}

	slog.Debug("report written", slog.String("path", outputPath))
	return outputPath, nil
}
