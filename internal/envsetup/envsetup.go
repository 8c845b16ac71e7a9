// Package envsetup points a debug variable at the build output and makes
// sure the user's PATH references it. Windows user environment is updated
// in place; on Unix-like systems only instructions are printed.
package envsetup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oh-my-dot/dotbuild/internal/command"
	"github.com/oh-my-dot/dotbuild/internal/env"
)

// DefaultDebugEnv is the variable that points at the latest debug build.
const DefaultDebugEnv = "ohmydot_debug"

// ErrUnsupportedPlatform is returned for operating systems without a configurator.
var ErrUnsupportedPlatform = errors.New("environment setup is not supported on this platform")

// Result reports what a configurator did.
type Result struct {
	Target         string
	PointerUpdated bool
	PathUpdated    bool
	// Instructions holds the shell lines printed for manual setup.
	Instructions string
	ProfileFile  string
}

// Changed reports whether any state was written or instructions emitted.
func (r Result) Changed() bool {
	return r.PointerUpdated || r.PathUpdated || r.Instructions != ""
}

// Configurator brings the environment in line with target, an absolute path.
type Configurator interface {
	Configure(ctx context.Context, target string) (Result, error)
}

// Options selects and parameterises a configurator.
type Options struct {
	GOOS     string
	DebugEnv string
	// Env is the inherited process environment (Unix-like only).
	Env env.Provider
	// Store persists user variables (Windows only).
	Store Store
	// Out receives printed instructions (Unix-like only).
	Out io.Writer
}

// ForPlatform returns the configurator for opts.GOOS.
func ForPlatform(opts Options) (Configurator, error) {
	debugEnv := strings.TrimSpace(opts.DebugEnv)
	if debugEnv == "" {
		debugEnv = DefaultDebugEnv
	}
	switch opts.GOOS {
	case "windows":
		if opts.Store == nil {
			return nil, fmt.Errorf("windows environment setup requires a store")
		}
		return &Windows{Store: opts.Store, DebugEnv: debugEnv}, nil
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly":
		out := opts.Out
		if out == nil {
			out = io.Discard
		}
		return &Unix{Env: opts.Env, DebugEnv: debugEnv, GOOS: opts.GOOS, Out: out}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, opts.GOOS)
	}
}

// Store reads and writes user-scope environment variables.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// Store kinds accepted by NewStore.
const (
	StorePowerShell = "powershell"
	StoreRegistry   = "registry"
)

// NewStore returns the named store. The registry store is only available
// on Windows builds.
func NewStore(kind string, runner command.Runner) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", StorePowerShell:
		return &PowerShellStore{Runner: runner}, nil
	case StoreRegistry:
		return newRegistryStore()
	default:
		return nil, fmt.Errorf("unknown environment store %q", kind)
	}
}
