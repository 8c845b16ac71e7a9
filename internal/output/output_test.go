package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/oh-my-dot/dotbuild/pkg/types"
)

func sampleReport() Report {
	return Report{
		Plan: types.Plan{
			Build: types.BuildInfo{
				Version:       "2.5.10-canary",
				VersionSource: types.VersionSourceTag,
				Tag:           "2.5.9",
				Commit:        "abc1234",
			},
			Output:    "./build/",
			AbsOutput: "/src/oh-my-dot/build",
			Package:   ".",
			Profiles:  []string{"debug"},
			Command:   []string{"go", "build", "-ldflags", "-X main.Version=2.5.10-canary -X main.Commit=abc1234", "-o", "./build/", "."},
			OS:        "linux",
			Arch:      "amd64",
		},
		Violations: []types.Violation{
			{PolicyID: "DB002", Message: "short commit", Severity: types.SeverityWarn},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(sampleReport(), FormatJSON, &buf); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	plan, ok := payload["plan"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected plan object in json output")
	}
	build, ok := plan["build"].(map[string]interface{})
	if !ok || build["version"] != "2.5.10-canary" || build["versionSource"] != "tag" {
		t.Fatalf("unexpected build block: %#v", plan["build"])
	}
	violations, ok := payload["violations"].([]interface{})
	if !ok || len(violations) != 1 {
		t.Fatalf("expected 1 violation in json output")
	}
}

func TestWriteJSONEmptyViolations(t *testing.T) {
	report := sampleReport()
	report.Violations = nil
	var buf bytes.Buffer
	if err := Write(report, FormatJSON, &buf); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if !strings.Contains(buf.String(), `"violations": []`) {
		t.Fatalf("expected empty violations array, got %s", buf.String())
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(sampleReport(), FormatTable, &buf); err != nil {
		t.Fatalf("write table: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"2.5.10-canary", "tag (2.5.9)", "abc1234", "/src/oh-my-dot/build", "linux/amd64", "DB002", "WARN", "Policies: 1 violations (1 warn)"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in table output:\n%s", want, output)
		}
	}
	if !strings.Contains(output, `"-X main.Version=2.5.10-canary -X main.Commit=abc1234"`) {
		t.Fatalf("expected quoted ldflags in command column:\n%s", output)
	}
}

func TestWriteTableNoViolations(t *testing.T) {
	report := sampleReport()
	report.Violations = nil
	var buf bytes.Buffer
	if err := Write(report, FormatTable, &buf); err != nil {
		t.Fatalf("write table: %v", err)
	}
	output := buf.String()
	if strings.Contains(output, "SEVERITY") {
		t.Fatalf("violations table must be omitted")
	}
	if !strings.Contains(output, "Policies: 0 violations") {
		t.Fatalf("expected summary with zero violations")
	}
}

func TestWriteUnsupportedFormat(t *testing.T) {
	if err := Write(sampleReport(), "sarif", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	if ValidFormat("sarif") || !ValidFormat("JSON") {
		t.Fatalf("unexpected format validation")
	}
}

func TestSummaryString(t *testing.T) {
	violations := []types.Violation{{Severity: types.SeverityWarn}, {Severity: types.SeverityError}}
	summary := SummaryString(violations)
	if summary != "2 violations (1 error, 1 warn)" {
		t.Fatalf("unexpected summary: %s", summary)
	}
}

func TestCommandLine(t *testing.T) {
	got := CommandLine([]string{"go", "build", "-o", "out dir/", ""})
	if got != `go build -o "out dir/" ""` {
		t.Fatalf("unexpected command line: %s", got)
	}
}
