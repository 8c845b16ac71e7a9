package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/oh-my-dot/dotbuild/internal/build"
	"github.com/oh-my-dot/dotbuild/internal/command"
	"github.com/oh-my-dot/dotbuild/internal/config"
	"github.com/oh-my-dot/dotbuild/internal/env"
	"github.com/oh-my-dot/dotbuild/internal/envsetup"
	"github.com/oh-my-dot/dotbuild/internal/logging"
	"github.com/oh-my-dot/dotbuild/internal/output"
	"github.com/oh-my-dot/dotbuild/internal/progress"
	"github.com/oh-my-dot/dotbuild/internal/vcs"
	"github.com/oh-my-dot/dotbuild/internal/versioning"
	"github.com/oh-my-dot/dotbuild/pkg/policy"
	regopolicy "github.com/oh-my-dot/dotbuild/pkg/policy/rego"
	"github.com/oh-my-dot/dotbuild/pkg/types"
	"github.com/oh-my-dot/dotbuild/pkg/version"
)

// DefaultOutput is where binaries land when --out is not given.
const DefaultOutput = "./build/"

// Deps are the external capabilities the CLI drives.
type Deps struct {
	// Runner executes git and platform commands.
	Runner         command.Runner
	// CompilerRunner returns the runner for the compiler with extra
	// environment entries applied.
	CompilerRunner func(extraEnv []string) command.Runner
	Env            env.Provider
	GOOS           string
	GOARCH         string
	// Store overrides the Windows user environment store.
	Store          envsetup.Store
}

// DefaultDeps returns dependencies backed by the real system.
func DefaultDeps() Deps {
	return Deps{
		Runner: command.Exec{},
		CompilerRunner: func(extraEnv []string) command.Runner {
			return command.Exec{Env: extraEnv}
		},
		Env:    env.OS{},
		GOOS:   runtime.GOOS,
		GOARCH: runtime.GOARCH,
	}
}

// Execute is the entrypoint for the CLI. Returns process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	return ExecuteWith(DefaultDeps(), args, stdout, stderr)
}

// ExecuteWith runs the CLI against deps.
func ExecuteWith(deps Deps, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "env":
			return runEnvCommand(deps, args[1:], stdout, stderr)
		case "version":
			return runVersionCommand(args[1:], stdout, stderr)
		case "policies":
			return runPoliciesCommand(args[1:], stdout, stderr)
		}
	}
	return runBuild(deps, args, stdout, stderr)
}

func runBuild(deps Deps, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("dotbuild", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	out := flags.StringP("out", "o", DefaultOutput, "Output path passed to the compiler")
	configPath := flags.String("config", "", "Path to configuration file (default .dotbuild.yaml)")
	profiles := flags.StringSlice("profile", nil, "Apply build profiles (debug, release, static or custom)")
	policyPaths := flags.StringSlice("policy", nil, "Rego policy module or directory (repeatable)")
	skipEnv := flags.Bool("skip-env", false, "Do not configure the debug environment after building")
	dryRun := flags.Bool("dry-run", false, "Resolve and print the build plan without compiling")
	format := flags.String("format", "table", "Plan output format: table|json")
	verbose := flags.BoolP("verbose", "v", false, "Enable debug logging")
	showVersion := flags.Bool("version", false, "Print dotbuild version and exit")
	flags.Usage = func() { printBuildUsage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		printError(stderr, "argument", err)
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}
	if !output.ValidFormat(*format) {
		printError(stderr, "format", fmt.Errorf("unsupported format %q", *format))
		return 2
	}

	settings, err := config.LoadSettings("")
	if err != nil {
		printError(stderr, "settings", err)
		return 2
	}
	log, err := newLogger(stderr, settings.LogLevel, *verbose)
	if err != nil {
		printError(stderr, "settings", err)
		return 2
	}

	path := *configPath
	if path == "" {
		path = settings.ConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		printError(stderr, "config", err)
		return 2
	}
	if err := cfg.ApplyProfiles(*profiles...); err != nil {
		printError(stderr, "profile", err)
		return 2
	}
	absOut, err := build.ResolveOutput(*out)
	if err != nil {
		printError(stderr, "output", err)
		return 2
	}

	ctx := context.Background()
	log.Info().Msgf("Building to %s", *out)

	git := vcs.NewGit(deps.Runner, cfg.Git)
	commit, err := git.ShortCommit(ctx)
	if err != nil {
		printError(stderr, "commit", err)
		return 1
	}
	log.Info().Msgf("Commit hash %s", commit)

	resolver := versioning.Resolver{
		Env:          deps.Env,
		OverrideEnv:  cfg.VersionEnv,
		Tags:         git,
		CanarySuffix: cfg.CanarySuffix,
	}
	resolved, err := resolver.Resolve(ctx)
	if err != nil {
		printError(stderr, "version", err)
		return 1
	}
	log.Info().Str("source", string(resolved.Source)).Str("tag", resolved.Tag).Msgf("Version %s", resolved.Version)

	buildOpts := build.Options{
		Compiler: cfg.Compiler,
		Package:  cfg.Package,
		Output:   *out,
		Symbols:  cfg.Symbols,
		Info: types.BuildInfo{
			Version:       resolved.Version,
			VersionSource: resolved.Source,
			Tag:           resolved.Tag,
			Commit:        commit,
		},
		Profile: cfg.Build,
	}
	name, cmdArgs, err := build.CommandLine(buildOpts)
	if err != nil {
		printError(stderr, "build", err)
		return 2
	}
	plan := types.Plan{
		Build:     buildOpts.Info,
		Output:    *out,
		AbsOutput: absOut,
		Package:   cfg.Package,
		Profiles:  cfg.Applied,
		Command:   append([]string{name}, cmdArgs...),
		OS:        deps.GOOS,
		Arch:      deps.GOARCH,
	}

	violations, code := evaluatePolicies(ctx, log, append(cfg.PolicyPaths(), *policyPaths...), plan, stderr)
	if code != 0 {
		return code
	}

	if *dryRun {
		if err := output.Write(output.Report{Plan: plan, Violations: violations}, *format, stdout); err != nil {
			printError(stderr, "output", err)
			return 2
		}
		return 0
	}

	log.Debug().Strs("command", plan.Command).Strs("env", cfg.Build.Env).Msg("Invoking compiler")
	indicator := progress.For(stderr, *verbose)
	indicator.Start("Compiling " + cfg.Package)
	res, err := build.NewCompiler(deps.CompilerRunner(cfg.Build.Env)).Build(ctx, buildOpts)
	indicator.Stop()
	if err != nil {
		printError(stderr, "compile", err)
		return 1
	}
	if diag := strings.TrimSpace(res.Output()); diag != "" {
		log.Debug().Msg(diag)
	}

	if *skipEnv || settings.SkipEnv {
		log.Debug().Msg("Skipping environment setup")
		return 0
	}
	if err := configureEnvironment(ctx, deps, cfg, absOut, log, stdout); err != nil {
		printError(stderr, "environment", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level string, verbose bool) (zerolog.Logger, error) {
	return logging.New(w, logging.Options{
		Level:   level,
		Verbose: verbose,
		Color:   progress.IsTerminal(w),
	})
}

// evaluatePolicies loads and runs policies against plan. A non-zero code
// means the caller must stop.
func evaluatePolicies(ctx context.Context, log zerolog.Logger, paths []string, plan types.Plan, stderr io.Writer) ([]types.Violation, int) {
	var resolved []string
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := ResolvePath(p)
		if err != nil {
			printError(stderr, "policy path", err)
			return nil, 2
		}
		resolved = append(resolved, abs)
	}
	if len(resolved) == 0 {
		return nil, 0
	}
	loader := regopolicy.NewLoader(resolved...)
	log.Debug().Strs("files", loader.Files()).Msg("Loading policy modules")
	loaded, err := loader.Load(ctx)
	if err != nil {
		printError(stderr, "policy load", err)
		return nil, 2
	}
	set := policy.NewSet(loaded...)
	log.Debug().Int("policies", set.Len()).Msg("Evaluating build policies")
	violations, err := set.Evaluate(ctx, policy.InputFor(plan))
	if err != nil {
		printError(stderr, "policy", err)
		return nil, 1
	}
	for _, v := range violations {
		event := log.Info()
		switch v.Severity {
		case types.SeverityError:
			event = log.Error()
		case types.SeverityWarn:
			event = log.Warn()
		}
		event.Str("policy", v.PolicyID).Msg(v.Message)
	}
	if policy.Blocking(violations) {
		_ = output.WriteViolations(violations, stderr)
		printError(stderr, "policy", fmt.Errorf("build denied: %s", output.SummaryString(violations)))
		return violations, 1
	}
	return violations, 0
}

func configureEnvironment(ctx context.Context, deps Deps, cfg config.Config, target string, log zerolog.Logger, stdout io.Writer) error {
	store := deps.Store
	if store == nil && deps.GOOS == "windows" {
		s, err := envsetup.NewStore(cfg.WindowsStore, deps.Runner)
		if err != nil {
			return err
		}
		store = s
	}
	configurator, err := envsetup.ForPlatform(envsetup.Options{
		GOOS:     deps.GOOS,
		DebugEnv: cfg.DebugEnv,
		Env:      deps.Env,
		Store:    store,
		Out:      stdout,
	})
	if errors.Is(err, envsetup.ErrUnsupportedPlatform) {
		log.Warn().Str("os", deps.GOOS).Msg("Environment setup is not available on this platform")
		return nil
	}
	if err != nil {
		return err
	}
	res, err := configurator.Configure(ctx, target)
	if err != nil {
		return err
	}
	if res.PointerUpdated {
		log.Info().Msgf("Set %s to %s", cfg.DebugEnv, target)
	}
	if res.PathUpdated {
		log.Info().Msgf("Added %%%s%% to %s", cfg.DebugEnv, envsetup.PathVariable)
	}
	if !res.Changed() {
		log.Info().Msgf("%s already points at %s", cfg.DebugEnv, target)
	}
	return nil
}

func runEnvCommand(deps Deps, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("env", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	out := flags.StringP("out", "o", DefaultOutput, "Build output to point the debug variable at")
	configPath := flags.String("config", "", "Path to configuration file (default .dotbuild.yaml)")
	verbose := flags.BoolP("verbose", "v", false, "Enable debug logging")
	if err := flags.Parse(args); err != nil {
		printError(stderr, "argument", err)
		return 2
	}
	settings, err := config.LoadSettings("")
	if err != nil {
		printError(stderr, "settings", err)
		return 2
	}
	log, err := newLogger(stderr, settings.LogLevel, *verbose)
	if err != nil {
		printError(stderr, "settings", err)
		return 2
	}
	path := *configPath
	if path == "" {
		path = settings.ConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		printError(stderr, "config", err)
		return 2
	}
	absOut, err := build.ResolveOutput(*out)
	if err != nil {
		printError(stderr, "output", err)
		return 2
	}
	if err := configureEnvironment(context.Background(), deps, cfg, absOut, log, stdout); err != nil {
		printError(stderr, "environment", err)
		return 1
	}
	return 0
}

func runVersionCommand(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("version", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	long := flags.Bool("long", false, "Append the commit hash")
	if err := flags.Parse(args); err != nil {
		printError(stderr, "argument", err)
		return 2
	}
	if *long {
		fmt.Fprintln(stdout, version.Long())
		return 0
	}
	fmt.Fprintln(stdout, version.Version)
	return 0
}

// ResolvePath ensures the target is absolute relative to working dir.
func ResolvePath(target string) (string, error) {
	if filepath.IsAbs(target) {
		return target, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, target), nil
}

type policyRow struct {
	Bundle      string `json:"bundle"`
	Policy      string `json:"policy"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
	HelpURL     string `json:"helpUrl,omitempty"`
	Source      string `json:"source"`
}

func runPoliciesCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "list" {
		return runPoliciesList(args, stdout, stderr)
	}
	fmt.Fprintln(stderr, "Usage: dotbuild policies list [flags]")
	return 2
}

func runPoliciesList(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "list" {
		args = args[1:]
	}
	flags := pflag.NewFlagSet("policies list", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	dirs := flags.StringSlice("dir", nil, "Policy directories to inspect (default: configured policies or ./policies)")
	configPath := flags.String("config", "", "Path to configuration file (default .dotbuild.yaml)")
	format := flags.String("format", "table", "Output format: table|json")
	if err := flags.Parse(args); err != nil {
		printError(stderr, "argument", err)
		return 2
	}
	roots := *dirs
	if len(roots) == 0 {
		cfg, err := config.Load(*configPath)
		if err != nil {
			printError(stderr, "config", err)
			return 2
		}
		roots = cfg.PolicyPaths()
	}
	if len(roots) == 0 {
		roots = []string{"policies"}
	}
	wd, err := os.Getwd()
	if err != nil {
		printError(stderr, "workdir", err)
		return 2
	}
	var rows []policyRow
	ctx := context.Background()
	for _, root := range roots {
		resolved, err := ResolvePath(root)
		if err != nil {
			printError(stderr, "policy dir", err)
			return 2
		}
		info, statErr := os.Stat(resolved)
		if statErr != nil {
			printError(stderr, "policy dir", statErr)
			return 2
		}
		records, missing, err := regopolicy.DiscoverMetadata(ctx, resolved)
		if err != nil {
			printError(stderr, "policy load", err)
			return 2
		}
		if len(missing) > 0 {
			printError(stderr, "policy path", fmt.Errorf("missing: %s", strings.Join(missing, ", ")))
			return 2
		}
		bundleName := info.Name()
		if !info.IsDir() {
			bundleName = filepath.Base(filepath.Dir(resolved))
		}
		for _, rec := range records {
			source := rec.Source
			if rel, relErr := filepath.Rel(wd, source); relErr == nil {
				source = rel
			}
			rows = append(rows, policyRow{
				Bundle:      bundleName,
				Policy:      rec.Metadata.ID,
				Severity:    string(rec.Metadata.DefaultSeverity),
				Enabled:     rec.Metadata.Enabled,
				Description: rec.Metadata.Description,
				HelpURL:     rec.Metadata.HelpURL,
				Source:      source,
			})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No policies found.")
		return 0
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bundle == rows[j].Bundle {
			return rows[i].Policy < rows[j].Policy
		}
		return rows[i].Bundle < rows[j].Bundle
	})
	switch strings.ToLower(*format) {
	case "", "table":
		renderPolicyTable(rows, stdout)
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			printError(stderr, "output", err)
			return 2
		}
		return 0
	default:
		printError(stderr, "format", fmt.Errorf("unsupported format %q", *format))
		return 2
	}
}

func renderPolicyTable(rows []policyRow, w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Bundle", "Policy", "Severity", "Enabled", "Description", "Source"})
	for _, row := range rows {
		severity := strings.ToUpper(row.Severity)
		if severity == "" {
			severity = "INFO"
		}
		t.AppendRow(table.Row{row.Bundle, row.Policy, severity, row.Enabled, row.Description, row.Source})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("Total: %d policies", len(rows))})
	t.SetStyle(table.StyleDefault)
	t.Render()
}

// printBuildUsage documents that a leading env, version or policies word
// selects a subcommand; any other positional argument is ignored.
func printBuildUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: dotbuild [flags] [args...]")
	fmt.Fprintln(w, "       dotbuild <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands (only recognised as the first argument):")
	fmt.Fprintln(w, "  env        Configure the debug environment for an existing build")
	fmt.Fprintln(w, "  version    Print dotbuild version")
	fmt.Fprintln(w, "  policies   List build policies")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without a command dotbuild builds the current module. Other")
	fmt.Fprintln(w, "positional arguments are accepted and ignored.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flags.FlagUsages())
}

func printError(w io.Writer, stage string, err error) {
	fmt.Fprintf(w, "[ERROR] %-12s %v\n", strings.ToUpper(stage), err)
}
