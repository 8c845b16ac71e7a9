package build

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/oh-my-dot/dotbuild/internal/command"
	"github.com/oh-my-dot/dotbuild/internal/command/commandtest"
	"github.com/oh-my-dot/dotbuild/internal/config"
	"github.com/oh-my-dot/dotbuild/pkg/types"
)

var testSymbols = config.Symbols{
	Version: "github.com/PatrickMatthiesen/oh-my-dot/cmd.Version",
	Commit:  "github.com/PatrickMatthiesen/oh-my-dot/cmd.CommitHash",
}

func TestCommandLineDefaults(t *testing.T) {
	name, args, err := CommandLine(Options{
		Output:  "./build/",
		Symbols: testSymbols,
		Info:    types.BuildInfo{Version: "2.5.10-canary", Commit: "a1b2c3d"},
	})
	if err != nil {
		t.Fatalf("command line: %v", err)
	}
	if name != "go" {
		t.Fatalf("expected go, got %s", name)
	}
	want := []string{
		"build",
		"-ldflags", "-X github.com/PatrickMatthiesen/oh-my-dot/cmd.Version=2.5.10-canary -X github.com/PatrickMatthiesen/oh-my-dot/cmd.CommitHash=a1b2c3d",
		"-o", "./build/", ".",
	}
	if strings.Join(args, "\x00") != strings.Join(want, "\x00") {
		t.Fatalf("unexpected args:\n got %q\nwant %q", args, want)
	}
}

func TestCommandLineWithProfile(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ApplyProfiles("release", "static", "debug"); err != nil {
		t.Fatalf("apply profiles: %v", err)
	}
	_, args, err := CommandLine(Options{
		Compiler: "go1.22",
		Package:  "./cmd/app",
		Output:   "bin/app",
		Symbols:  testSymbols,
		Info:     types.BuildInfo{Version: "1.0.0", Commit: "abc"},
		Profile:  cfg.Build,
	})
	if err != nil {
		t.Fatalf("command line: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-trimpath", "-tags netgo,osusergo", "-gcflags all=-N -l", "-s -w -extldflags=-static", "-o bin/app ./cmd/app"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestCommandLineRequiresSymbols(t *testing.T) {
	if _, _, err := CommandLine(Options{Output: "out"}); err == nil {
		t.Fatalf("expected error without symbols")
	}
	if _, _, err := CommandLine(Options{Symbols: testSymbols}); err == nil {
		t.Fatalf("expected error without output")
	}
}

func TestLDFlagsQuotesWhitespace(t *testing.T) {
	flags, err := LDFlags(config.Symbols{Version: "main.Version", Commit: "main.Commit"}, types.BuildInfo{Version: "1.0.0 beta", Commit: "abc"})
	if err != nil {
		t.Fatalf("ldflags: %v", err)
	}
	if flags != "-X 'main.Version=1.0.0 beta' -X main.Commit=abc" {
		t.Fatalf("unexpected ldflags %q", flags)
	}
}

func TestLDFlagsQuoting(t *testing.T) {
	symbols := config.Symbols{Version: "main.Version", Commit: "main.Commit"}
	cases := []struct {
		version string
		want    string
	}{
		{version: "1.0.0", want: "-X main.Version=1.0.0 -X main.Commit=abc"},
		{version: `say "hi"`, want: `-X 'main.Version=say "hi"' -X main.Commit=abc`},
		{version: "it's", want: `-X "main.Version=it's" -X main.Commit=abc`},
	}
	for _, tc := range cases {
		got, err := LDFlags(symbols, types.BuildInfo{Version: tc.version, Commit: "abc"})
		if err != nil {
			t.Fatalf("ldflags for %q: %v", tc.version, err)
		}
		if got != tc.want {
			t.Fatalf("ldflags for %q:\n got %s\nwant %s", tc.version, got, tc.want)
		}
	}
}

func TestLDFlagsRejectsMixedQuotes(t *testing.T) {
	info := types.BuildInfo{Version: `it's "x"`, Commit: "abc"}
	if _, err := LDFlags(config.Symbols{Version: "main.Version", Commit: "main.Commit"}, info); err == nil {
		t.Fatalf("expected error for a value with both quote kinds")
	}
	_, _, err := CommandLine(Options{Output: "out", Symbols: testSymbols, Info: info})
	if err == nil || !strings.Contains(err.Error(), "mixes single and double quotes") {
		t.Fatalf("expected command line to reject mixed quotes, got %v", err)
	}
}

func TestBuildSurfacesToolchainOutput(t *testing.T) {
	fake := commandtest.New(nil)
	fake.Handler = func(call commandtest.Call) (commandtest.Response, bool) {
		return commandtest.Response{Stderr: "./main.go:3:2: undefined: foo", ExitCode: 1}, true
	}
	_, err := NewCompiler(fake).Build(context.Background(), Options{Output: "out/", Symbols: testSymbols})
	if err == nil {
		t.Fatalf("expected compile error")
	}
	if !strings.Contains(err.Error(), "undefined: foo") {
		t.Fatalf("expected diagnostics in error, got %v", err)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("expected a single compiler call, got %d", len(fake.Calls))
	}
}

func TestBuildRunsScriptCompiler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fakego")
	record := filepath.Join(dir, "args.txt")
	body := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + record + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	_, err := NewCompiler(command.Exec{Dir: dir}).Build(context.Background(), Options{
		Compiler: script,
		Output:   "./build/",
		Symbols:  testSymbols,
		Info:     types.BuildInfo{Version: "0.0.1-canary", Commit: "deadbee"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "build" || lines[1] != "-ldflags" {
		t.Fatalf("unexpected args %q", lines)
	}
	if !strings.Contains(lines[2], "cmd.Version=0.0.1-canary") || !strings.Contains(lines[2], "cmd.CommitHash=deadbee") {
		t.Fatalf("expected both substitutions in %q", lines[2])
	}
}

func TestResolveOutputTrailingSlash(t *testing.T) {
	a, err := ResolveOutput("./build")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := ResolveOutput("./build/")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical paths, got %q and %q", a, b)
	}
	if !filepath.IsAbs(a) {
		t.Fatalf("expected absolute path, got %q", a)
	}
	if _, err := ResolveOutput("  "); err == nil {
		t.Fatalf("expected error for blank output")
	}
}
