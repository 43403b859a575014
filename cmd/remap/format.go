package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"remap/internal/errors"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// ParseOutputFormat validates a --format value
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatHuman, "":
		return FormatHuman, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Styles used by human output; all of them render plain text when styling is off
var (
	accent     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	muted      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	bold       = lipgloss.NewStyle().Bold(true)
	accentBold = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)
	failure    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
)

// styler applies lipgloss styles only when writing to a terminal
type styler struct {
	enabled bool
}

// newStyler enables styling when w is a terminal and NO_COLOR is unset
func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return styler{}
	}
	return styler{enabled: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styler) Accent(text string) string     { return s.render(accent, text) }
func (s styler) Muted(text string) string      { return s.render(muted, text) }
func (s styler) Bold(text string) string       { return s.render(bold, text) }
func (s styler) AccentBold(text string) string { return s.render(accentBold, text) }
func (s styler) Failure(text string) string    { return s.render(failure, text) }

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// errorResponse is the JSON form of a failed command
type errorResponse struct {
	Error *errors.RemapError `json:"error"`
}

// printError reports err with its code and suggested fixes
func printError(w io.Writer, err error, format OutputFormat) {
	var re *errors.RemapError
	coded := stderrors.As(err, &re)
	if !coded {
		re = errors.Wrap(errors.InternalError, err.Error(), err)
	}

	if format == FormatJSON {
		_ = writeJSON(w, errorResponse{Error: re})
		return
	}

	st := newStyler(w)
	fmt.Fprintf(w, "%s %s\n", st.Failure("Error:"), err.Error())
	if coded && len(re.SuggestedFixes) > 0 {
		fmt.Fprintln(w, "  Suggested fixes:")
		for _, fix := range re.SuggestedFixes {
			fmt.Fprintf(w, "    - %s\n", fix.Description)
			if fix.Command != "" {
				fmt.Fprintf(w, "      %s\n", st.Muted("$ "+fix.Command))
			}
		}
	}
}

// truncate shortens s to n runes with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// rule returns a horizontal separator
func rule(n int) string {
	return strings.Repeat("─", n)
}
