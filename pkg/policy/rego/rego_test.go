package rego_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oh-my-dot/dotbuild/pkg/policy"
	regoloader "github.com/oh-my-dot/dotbuild/pkg/policy/rego"
	"github.com/oh-my-dot/dotbuild/pkg/types"
)

func writeModule(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	return path
}

func TestLoaderLoadsRegoPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "canary.rego", `package dotbuild.no_canary_release

metadata := {
  "id": "DB001",
  "description": "Release builds need a pinned version",
  "severity": "error",
  "help_url": "https://example.com/policies",
}

deny[v] {
  input.canary
  input.profiles[_] == "release"
  v := {"message": sprintf("version %s is a canary", [input.version])}
}
`)

	policies, err := regoloader.NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load policies: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}
	p := policies[0]
	meta := p.Metadata()
	if meta.ID != "DB001" || meta.DefaultSeverity != types.SeverityError {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	in := policy.Input{Version: "2.5.10-canary", VersionSource: "tag", Canary: true, Profiles: []string{"release"}}
	violations, err := p.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Message != "version 2.5.10-canary is a canary" {
		t.Fatalf("unexpected message: %s", v.Message)
	}
	if v.PolicyID != "DB001" || v.Severity != types.SeverityError || v.Source != path {
		t.Fatalf("unexpected violation: %+v", v)
	}
	if v.HelpURL != "https://example.com/policies" {
		t.Fatalf("expected help url from metadata, got %q", v.HelpURL)
	}

	in.Canary = false
	violations, err = p.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations for pinned version, got %+v", violations)
	}
}

func TestMetadataIsOptional(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "commit.rego", `package dotbuild.commit

deny[v] {
  count(input.commit) < 7
  v := {"message": "short commit", "severity": "WARN"}
}
`)
	policies, err := regoloader.NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load policies: %v", err)
	}
	meta := policies[0].Metadata()
	if meta.ID != "dotbuild.commit" {
		t.Fatalf("expected package path as id, got %q", meta.ID)
	}
	if meta.DefaultSeverity != types.SeverityError || !meta.Enabled {
		t.Fatalf("unexpected defaults: %+v", meta)
	}
	violations, err := policies[0].Evaluate(context.Background(), policy.Input{Commit: "abc"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(violations) != 1 || violations[0].Severity != types.SeverityWarn {
		t.Fatalf("expected one warn violation, got %+v", violations)
	}
}

func TestStringViolations(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "os.rego", `package dotbuild.os

deny[msg] {
  input.os == "plan9"
  msg := "plan9 is not supported"
}
`)
	policies, err := regoloader.NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load policies: %v", err)
	}
	violations, err := policies[0].Evaluate(context.Background(), policy.Input{OS: "plan9"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(violations) != 1 || violations[0].Message != "plan9 is not supported" {
		t.Fatalf("unexpected violations: %+v", violations)
	}
}

func TestLoaderWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "b/second.rego", "package dotbuild.second\n\ndeny[msg] {\n  false\n  msg := \"x\"\n}\n")
	writeModule(t, dir, "a/first.rego", "package dotbuild.first\n\ndeny[msg] {\n  false\n  msg := \"x\"\n}\n")
	writeModule(t, dir, "a/first_test.rego", "package dotbuild.first_test\n\ntest_ok { true }\n")
	writeModule(t, dir, "README.md", "not a module")

	loader := regoloader.NewLoader(dir, filepath.Join(dir, "a"))
	files := loader.Files()
	if len(files) != 2 {
		t.Fatalf("expected 2 modules, got %v", files)
	}
	if !strings.HasSuffix(files[0], filepath.Join("a", "first.rego")) {
		t.Fatalf("expected sorted paths, got %v", files)
	}
	policies, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load policies: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
}

func TestLoaderErrorsForMissingPaths(t *testing.T) {
	loader := regoloader.NewLoader("does-not-exist.rego")
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing policy path")
	}
}

func TestModuleWithoutDenyIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "empty.rego", "package dotbuild.empty\n\nallow { true }\n")
	if _, err := regoloader.NewLoader(path).Load(context.Background()); err == nil {
		t.Fatalf("expected error for module without deny")
	}
}

func TestUnknownSeverityIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "sev.rego", `package dotbuild.sev

metadata := {"severity": "fatal"}

deny[msg] {
  msg := "x"
}
`)
	if _, err := regoloader.NewLoader(path).Load(context.Background()); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestDiscoverMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "meta.rego", `package dotbuild.meta

metadata := {
  "id": "DB010",
  "description": "metadata discovery test",
  "severity": "info",
  "enabled": false,
}

deny[msg] {
  msg := "noop"
}
`)
	records, missing, err := regoloader.DiscoverMetadata(context.Background(), path)
	if err != nil {
		t.Fatalf("discover metadata: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("unexpected missing paths reported: %v", missing)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	record := records[0]
	if record.Metadata.ID != "DB010" || record.Metadata.Enabled {
		t.Fatalf("unexpected metadata: %+v", record.Metadata)
	}
	if record.Metadata.DefaultSeverity != types.SeverityInfo {
		t.Fatalf("unexpected severity: %s", record.Metadata.DefaultSeverity)
	}
	if record.Source != path {
		t.Fatalf("expected source %s, got %s", path, record.Source)
	}
}
