package envsetup

import (
	"context"
	"fmt"
	"strings"

	"github.com/oh-my-dot/dotbuild/internal/command"
)

// PowerShellStore reads and writes user variables through
// [Environment]::Get/SetEnvironmentVariable, which also broadcasts the change
// to running shells.
type PowerShellStore struct {
	Runner command.Runner
	// Binary defaults to "powershell".
	Binary string
}

// Get returns the user-scope value of name, or "" when unset.
func (s *PowerShellStore) Get(ctx context.Context, name string) (string, error) {
	script := fmt.Sprintf("[Environment]::GetEnvironmentVariable(%s, 'User')", psQuote(name))
	res, err := s.run(ctx, script)
	if err != nil {
		return "", fmt.Errorf("read user variable %s: %w", name, err)
	}
	return strings.TrimRight(res.Stdout, "\r\n"), nil
}

// Set writes the user-scope value of name.
func (s *PowerShellStore) Set(ctx context.Context, name, value string) error {
	script := fmt.Sprintf("[Environment]::SetEnvironmentVariable(%s, %s, 'User')", psQuote(name), psQuote(value))
	if _, err := s.run(ctx, script); err != nil {
		return fmt.Errorf("write user variable %s: %w", name, err)
	}
	return nil
}

func (s *PowerShellStore) run(ctx context.Context, script string) (command.Result, error) {
	binary := strings.TrimSpace(s.Binary)
	if binary == "" {
		binary = "powershell"
	}
	return s.Runner.Run(ctx, binary, "-NoProfile", "-NonInteractive", "-Command", script)
}

// psQuote renders v as a single-quoted PowerShell string literal.
func psQuote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
