package reporter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output format name
type Format string

const (
	FormatPlain     Format = "plain"
	FormatSimple    Format = "simple"
	FormatGrid      Format = "grid"
	FormatFancyGrid Format = "fancy_grid"
	FormatHTML      Format = "html"
	FormatCSV       Format = "csv"
	FormatJSON      Format = "json"
)

// Formats lists every supported format in help-text order
var Formats = []Format{
	FormatPlain,
	FormatSimple,
	FormatGrid,
	FormatFancyGrid,
	FormatHTML,
	FormatCSV,
	FormatJSON,
}

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q (expected one of %s)", ErrUnknownFormat, name, FormatNames())
}

// FormatNames returns the supported formats as a comma separated list
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// IsText reports whether the format is a terminal table
func (f Format) IsText() bool {
	switch f {
	case FormatPlain, FormatSimple, FormatGrid, FormatFancyGrid:
		return true
	}
	return false
}

// Extension returns the file extension used when the report is written
func (f Format) Extension() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}
