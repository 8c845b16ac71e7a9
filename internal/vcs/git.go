package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oh-my-dot/dotbuild/internal/command"
)

// ErrNoTags is returned when no tag is reachable from HEAD.
var ErrNoTags = errors.New("no tags reachable from HEAD")

// Git queries a repository through the git binary.
type Git struct {
	Runner command.Runner
	Binary string
}

// NewGit returns a Git using runner. An empty binary means "git".
func NewGit(runner command.Runner, binary string) *Git {
	if strings.TrimSpace(binary) == "" {
		binary = "git"
	}
	return &Git{Runner: runner, Binary: binary}
}

// ShortCommit returns the abbreviated hash of HEAD.
func (g *Git) ShortCommit(ctx context.Context) (string, error) {
	res, err := g.Runner.Run(ctx, g.Binary, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve commit: %w", err)
	}
	ref := strings.TrimSpace(res.Stdout)
	if ref == "" {
		return "", fmt.Errorf("resolve commit: git printed no hash")
	}
	return ref, nil
}

// LatestTag returns the nearest tag reachable from HEAD.
func (g *Git) LatestTag(ctx context.Context) (string, error) {
	res, err := g.Runner.Run(ctx, g.Binary, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTags, err)
	}
	tag := strings.TrimSpace(res.Stdout)
	if tag == "" {
		return "", ErrNoTags
	}
	return tag, nil
}
