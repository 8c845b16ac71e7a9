package versioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oh-my-dot/dotbuild/internal/env"
	"github.com/oh-my-dot/dotbuild/pkg/types"
)

const (
	// DefaultOverrideEnv names the variable that pins the version.
	DefaultOverrideEnv = "ohmydot_version"
	// DefaultCanarySuffix is appended to tag-derived versions.
	DefaultCanarySuffix = "canary"
)

// ErrMalformedTag is returned for tags that are not MAJOR.MINOR.PATCH.
var ErrMalformedTag = errors.New("malformed version tag")

// TagSource yields the most recent tag.
type TagSource interface {
	LatestTag(ctx context.Context) (string, error)
}

// Resolver decides which version a build is stamped with.
type Resolver struct {
	Env          env.Provider
	OverrideEnv  string
	Tags         TagSource
	CanarySuffix string
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Version string
	Source  types.VersionSource
	Tag     string
}

// Resolve returns the override when set and not blank, otherwise the next
// canary version after the latest tag.
func (r Resolver) Resolve(ctx context.Context) (Resolution, error) {
	key := r.OverrideEnv
	if key == "" {
		key = DefaultOverrideEnv
	}
	if v, ok := env.NonBlank(r.Env, key); ok {
		return Resolution{Version: v, Source: types.VersionSourceEnv}, nil
	}
	if r.Tags == nil {
		return Resolution{}, fmt.Errorf("no tag source configured and %s is not set", key)
	}
	tag, err := r.Tags.LatestTag(ctx)
	if err != nil {
		return Resolution{}, err
	}
	next, err := NextCanary(tag, r.CanarySuffix)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Version: next, Source: types.VersionSourceTag, Tag: tag}, nil
}

// NextCanary bumps the patch component of tag and appends the pre-release
// suffix. A leading "v" is kept; any pre-release or build metadata on the
// tag itself is dropped.
func NextCanary(tag, suffix string) (string, error) {
	raw := strings.TrimSpace(tag)
	if suffix == "" {
		suffix = DefaultCanarySuffix
	}
	prefix := ""
	if strings.HasPrefix(raw, "v") || strings.HasPrefix(raw, "V") {
		prefix, raw = raw[:1], raw[1:]
	}
	parsed, err := semver.StrictNewVersion(raw)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrMalformedTag, tag, err)
	}
	next := semver.New(parsed.Major(), parsed.Minor(), parsed.Patch()+1, suffix, "")
	return prefix + next.String(), nil
}
