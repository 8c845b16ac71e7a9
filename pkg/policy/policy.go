// Package policy gates a build on user supplied rules evaluated against the
// resolved build plan.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/oh-my-dot/dotbuild/pkg/types"
)

// Input is the document policies evaluate.
type Input struct {
	Version       string   `json:"version"`
	VersionSource string   `json:"version_source"`
	Tag           string   `json:"tag"`
	Commit        string   `json:"commit"`
	Canary        bool     `json:"canary"`
	Output        string   `json:"output"`
	Profiles      []string `json:"profiles"`
	OS            string   `json:"os"`
	Arch          string   `json:"arch"`
}

// InputFor builds the policy input for plan.
func InputFor(plan types.Plan) Input {
	profiles := append([]string{}, plan.Profiles...)
	return Input{
		Version:       plan.Build.Version,
		VersionSource: string(plan.Build.VersionSource),
		Tag:           plan.Build.Tag,
		Commit:        plan.Build.Commit,
		Canary:        plan.Build.Canary(),
		Output:        plan.AbsOutput,
		Profiles:      profiles,
		OS:            plan.OS,
		Arch:          plan.Arch,
	}
}

// Map renders the input as plain JSON-like values.
func (in Input) Map() map[string]interface{} {
	profiles := make([]interface{}, 0, len(in.Profiles))
	for _, p := range in.Profiles {
		profiles = append(profiles, p)
	}
	return map[string]interface{}{
		"version":        in.Version,
		"version_source": in.VersionSource,
		"tag":            in.Tag,
		"commit":         in.Commit,
		"canary":         in.Canary,
		"output":         in.Output,
		"profiles":       profiles,
		"os":             in.OS,
		"arch":           in.Arch,
	}
}

// Policy is the interface build policies must satisfy.
type Policy interface {
	Metadata() types.PolicyMetadata
	Evaluate(ctx context.Context, in Input) ([]types.Violation, error)
}

// Set stores loaded policies.
type Set struct {
	policies []Policy
}

// NewSet creates a set holding policies.
func NewSet(policies ...Policy) *Set {
	s := &Set{}
	s.Add(policies...)
	return s
}

// Add appends policies to the set.
func (s *Set) Add(policies ...Policy) {
	s.policies = append(s.policies, policies...)
}

// Len returns the number of policies.
func (s *Set) Len() int {
	return len(s.policies)
}

// Evaluate runs every enabled policy. Violations are ordered by severity,
// highest first, then by policy ID.
func (s *Set) Evaluate(ctx context.Context, in Input) ([]types.Violation, error) {
	var violations []types.Violation
	for _, p := range s.policies {
		meta := p.Metadata()
		if !meta.Enabled {
			continue
		}
		found, err := p.Evaluate(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", meta.ID, err)
		}
		violations = append(violations, found...)
	}
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.Severity != b.Severity {
			return types.SeverityOrder[a.Severity] > types.SeverityOrder[b.Severity]
		}
		return a.PolicyID < b.PolicyID
	})
	return violations, nil
}

// Blocking reports whether any violation must stop the build.
func Blocking(violations []types.Violation) bool {
	return len(violations) > 0 && types.HighestSeverity(violations) == types.SeverityError
}
