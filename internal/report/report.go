package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
)

// Formats lists the names accepted by Render.
var Formats = []string{"text", "json", "sarif"}

// FormatError reports an output format Render does not know.
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported output format %q (want %s)", e.Format, strings.Join(Formats, ", "))
}

// Render encodes r in the named format.
func Render(r *model.AnalysisReport, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return []byte(Text(r)), nil
	case "json":
		return json.MarshalIndent(r, "", "  ")
	case "sarif":
		return ToSARIF(r)
	default:
		return nil, &FormatError{Format: format}
	}
}

// Sort orders every list in r by file, line and column. Vulnerabilities at
// the same position are ordered by descending severity, then rule id.
func Sort(r *model.AnalysisReport) {
	sort.SliceStable(r.Vulnerabilities, func(i, j int) bool {
		a, b := r.Vulnerabilities[i], r.Vulnerabilities[j]
		if c := compareLoc(a.Location, b.Location); c != 0 {
			return c < 0
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.RuleID < b.RuleID
	})
	sort.SliceStable(r.Warnings, func(i, j int) bool {
		return compareLoc(r.Warnings[i].Location, r.Warnings[j].Location) < 0
	})
	sort.SliceStable(r.Suggestions, func(i, j int) bool {
		return compareLoc(r.Suggestions[i].Location, r.Suggestions[j].Location) < 0
	})
}

func compareLoc(a, b model.Location) int {
	switch {
	case a.File != b.File:
		return strings.Compare(a.File, b.File)
	case a.Line != b.Line:
		return a.Line - b.Line
	default:
		return a.Column - b.Column
	}
}

// Text renders r the way the terminal report shows it.
func Text(r *model.AnalysisReport) string {
	var b strings.Builder
	if len(r.Vulnerabilities) > 0 {
		b.WriteString("\nVulnerabilities:\n")
		for _, v := range r.Vulnerabilities {
			fmt.Fprintf(&b, "\n[%s] %s", v.Severity.Title(), v.Title)
			if v.RuleID != "" {
				fmt.Fprintf(&b, " (%s)", v.RuleID)
			}
			fmt.Fprintf(&b, "\nLocation: %s\nDescription: %s\nRecommendation: %s\n",
				v.Location, v.Description, v.Recommendation)
			if v.Snippet != "" {
				fmt.Fprintf(&b, "Code: %s\n", v.Snippet)
			}
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "\n%s\nLocation: %s\nDescription: %s\n", w.Title, w.Location, w.Description)
		}
	}
	if len(r.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "\n%s\nLocation: %s\nDescription: %s\n", s.Title, s.Location, s.Description)
		}
	}
	s := Summarize(r)
	fmt.Fprintf(&b, "\n%s\n", s.Message())
	return b.String()
}
