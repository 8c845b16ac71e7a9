package build

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oh-my-dot/dotbuild/internal/command"
	"github.com/oh-my-dot/dotbuild/internal/config"
	"github.com/oh-my-dot/dotbuild/pkg/types"
)

// Options describes one compiler invocation.
type Options struct {
	Compiler string
	Package  string
	Output   string
	Symbols  config.Symbols
	Info     types.BuildInfo
	Profile  config.Profile
}

// Compiler invokes the Go toolchain.
type Compiler struct {
	runner command.Runner
}

// NewCompiler returns a Compiler backed by runner.
func NewCompiler(runner command.Runner) *Compiler {
	return &Compiler{runner: runner}
}

// Build compiles the package with version metadata stamped in. The
// toolchain's own diagnostics are part of the returned error.
func (c *Compiler) Build(ctx context.Context, opts Options) (command.Result, error) {
	name, args, err := CommandLine(opts)
	if err != nil {
		return command.Result{}, err
	}
	res, err := c.runner.Run(ctx, name, args...)
	if err != nil {
		return res, fmt.Errorf("compile %s: %w", opts.Package, err)
	}
	return res, nil
}

// CommandLine returns the compiler binary and its arguments.
func CommandLine(opts Options) (string, []string, error) {
	if strings.TrimSpace(opts.Symbols.Version) == "" || strings.TrimSpace(opts.Symbols.Commit) == "" {
		return "", nil, fmt.Errorf("version and commit symbols are required")
	}
	if strings.TrimSpace(opts.Output) == "" {
		return "", nil, fmt.Errorf("output path is required")
	}
	compiler := strings.TrimSpace(opts.Compiler)
	if compiler == "" {
		compiler = "go"
	}
	pkg := strings.TrimSpace(opts.Package)
	if pkg == "" {
		pkg = "."
	}
	args := []string{"build"}
	if opts.Profile.TrimpathEnabled() {
		args = append(args, "-trimpath")
	}
	if len(opts.Profile.Tags) > 0 {
		args = append(args, "-tags", strings.Join(opts.Profile.Tags, ","))
	}
	if opts.Profile.GCFlags != "" {
		args = append(args, "-gcflags", opts.Profile.GCFlags)
	}
	ldflags, err := LDFlags(opts.Symbols, opts.Info, opts.Profile.LDFlags...)
	if err != nil {
		return "", nil, err
	}
	args = append(args, "-ldflags", ldflags)
	args = append(args, "-o", opts.Output, pkg)
	return compiler, args, nil
}

// LDFlags renders the -X substitutions followed by any extra linker flags.
func LDFlags(symbols config.Symbols, info types.BuildInfo, extra ...string) (string, error) {
	parts := make([]string, 0, 2+len(extra))
	for _, kv := range []string{symbols.Version + "=" + info.Version, symbols.Commit + "=" + info.Commit} {
		quoted, err := quoteFlag(kv)
		if err != nil {
			return "", err
		}
		parts = append(parts, "-X "+quoted)
	}
	parts = append(parts, extra...)
	return strings.Join(parts, " "), nil
}

// quoteFlag quotes values the linker's flag splitter would break apart.
// The splitter has no escapes, so a value holding both quote kinds
// cannot be passed.
func quoteFlag(v string) (string, error) {
	if !strings.ContainsAny(v, " \t\n\r'\"") {
		return v, nil
	}
	switch {
	case !strings.Contains(v, "'"):
		return "'" + v + "'", nil
	case !strings.Contains(v, `"`):
		return `"` + v + `"`, nil
	default:
		return "", fmt.Errorf("ldflags value %q mixes single and double quotes", v)
	}
}

// ResolveOutput turns the output flag into a cleaned absolute path.
func ResolveOutput(out string) (string, error) {
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("output path is empty")
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolve output: %w", err)
	}
	return abs, nil
}
