package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMissingVariable is returned when a placeholder has no bound variable
	ErrMissingVariable = errors.New("missing template variable")
	// ErrInvalidPlaceholder is returned for a '$' that starts no valid placeholder
	ErrInvalidPlaceholder = errors.New("invalid placeholder")
)

// placeholderPattern matches, in order: an escaped "$$", "$name", "${name}",
// or a bare '$' that fits none of those.
var placeholderPattern = regexp.MustCompile(`\$(?:(\$)|([_A-Za-z][_A-Za-z0-9]*)|\{([_A-Za-z][_A-Za-z0-9]*)\}|())`)

// MissingVariableError names the placeholder that could not be resolved
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingVariable, e.Name)
}

func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}

// Substitute replaces $name and ${name} placeholders in tmpl.
// Every placeholder must be bound in vars.
func Substitute(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	last := 0

	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0 || m[6] >= 0:
			name := groupText(tmpl, m, 4)
			if name == "" {
				name = groupText(tmpl, m, 6)
			}
			value, ok := vars[name]
			if !ok {
				return "", &MissingVariableError{Name: name}
			}
			b.WriteString(value)
		default:
			line, col := position(tmpl, m[0])
			return "", fmt.Errorf("%w in template: line %d, col %d", ErrInvalidPlaceholder, line, col)
		}
	}

	b.WriteString(tmpl[last:])
	return b.String(), nil
}

// SafeSubstitute is like Substitute, but leaves unresolved or invalid
// placeholders in place instead of failing.
func SafeSubstitute(tmpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		switch {
		case sub[1] != "":
			return "$"
		case sub[2] != "":
			if value, ok := vars[sub[2]]; ok {
				return value
			}
		case sub[3] != "":
			if value, ok := vars[sub[3]]; ok {
				return value
			}
		}
		return match
	})
}

// Placeholders lists the variable names referenced by tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, sub := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		name := sub[2]
		if name == "" {
			name = sub[3]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func groupText(s string, m []int, idx int) string {
	if m[idx] < 0 {
		return ""
	}
	return s[m[idx]:m[idx+1]]
}

func position(s string, offset int) (int, int) {
	before := s[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return line, col
}
