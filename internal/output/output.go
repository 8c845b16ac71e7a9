package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/oh-my-dot/dotbuild/pkg/types"
)

// Format enumerates supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Report is a build plan plus the policy verdict on it.
type Report struct {
	Plan       types.Plan        `json:"plan"`
	Violations []types.Violation `json:"violations"`
}

// ValidFormat reports whether format is supported.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", FormatTable, FormatJSON:
		return true
	}
	return false
}

// Write renders the report to the writer using the requested format.
func Write(report Report, format string, w io.Writer) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return writeTable(report, w)
	case FormatJSON:
		return writeJSON(report, w)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeTable(report Report, w io.Writer) error {
	plan := report.Plan
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Version", plan.Build.Version})
	source := string(plan.Build.VersionSource)
	if plan.Build.Tag != "" {
		source = fmt.Sprintf("%s (%s)", source, plan.Build.Tag)
	}
	t.AppendRow(table.Row{"Source", source})
	t.AppendRow(table.Row{"Commit", plan.Build.Commit})
	t.AppendRow(table.Row{"Output", plan.Output})
	t.AppendRow(table.Row{"Target", plan.AbsOutput})
	t.AppendRow(table.Row{"Package", plan.Package})
	profiles := "-"
	if len(plan.Profiles) > 0 {
		profiles = strings.Join(plan.Profiles, ", ")
	}
	t.AppendRow(table.Row{"Profiles", profiles})
	t.AppendRow(table.Row{"Platform", plan.OS + "/" + plan.Arch})
	t.AppendRow(table.Row{"Command", CommandLine(plan.Command)})
	t.SetStyle(table.StyleDefault)
	t.Render()

	if len(report.Violations) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := WriteViolations(report.Violations, w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nPolicies: %s\n", SummaryString(report.Violations))
	return err
}

// WriteViolations renders violations as a table.
func WriteViolations(violations []types.Violation, w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Severity", "Policy", "Message"})
	for _, v := range violations {
		severity := strings.ToUpper(string(v.Severity))
		if severity == "" {
			severity = "INFO"
		}
		t.AppendRow(table.Row{severity, v.PolicyID, v.Message})
	}
	t.SetStyle(table.StyleDefault)
	t.Render()
	return nil
}

func writeJSON(report Report, w io.Writer) error {
	if report.Violations == nil {
		report.Violations = []types.Violation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// CommandLine joins argv for display, quoting arguments with spaces.
func CommandLine(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\"") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// SummaryString generates a short textual summary.
func SummaryString(violations []types.Violation) string {
	if len(violations) == 0 {
		return "0 violations"
	}
	counts := map[types.Severity]int{}
	for _, v := range violations {
		counts[v.Severity]++
	}
	keys := []types.Severity{types.SeverityError, types.SeverityWarn, types.SeverityInfo}
	var parts []string
	for _, key := range keys {
		if counts[key] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[key], key))
		}
	}
	return fmt.Sprintf("%d violations (%s)", len(violations), strings.Join(parts, ", "))
}
