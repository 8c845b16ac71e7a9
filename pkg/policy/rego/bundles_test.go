package rego_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/oh-my-dot/dotbuild/pkg/policy"
	regoloader "github.com/oh-my-dot/dotbuild/pkg/policy/rego"
	"github.com/oh-my-dot/dotbuild/pkg/types"
)

func bundlesDir(t *testing.T) string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to determine test file path")
	}
	return filepath.Join(filepath.Dir(self), "..", "..", "..", "policies")
}

func TestShippedPoliciesCompile(t *testing.T) {
	root := bundlesDir(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read policies directory: %v", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		policies, err := regoloader.NewLoader(filepath.Join(root, entry.Name())).Load(context.Background())
		if err != nil {
			t.Fatalf("bundle %s failed to load: %v", entry.Name(), err)
		}
		if len(policies) == 0 {
			t.Fatalf("bundle %s produced no policies", entry.Name())
		}
		for _, p := range policies {
			if p.Metadata().ID == "" {
				t.Fatalf("bundle %s contains policy with empty id", entry.Name())
			}
		}
	}
}

func TestShippedPoliciesGateCanaryRelease(t *testing.T) {
	policies, err := regoloader.NewLoader(bundlesDir(t)).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	set := policy.NewSet(policies...)

	in := policy.Input{Version: "2.5.10-canary", Canary: true, Commit: "abc1234", Profiles: []string{"release"}}
	violations, err := set.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !policy.Blocking(violations) {
		t.Fatalf("expected canary release to be blocked, got %+v", violations)
	}

	in = policy.Input{Version: "3.0.0", Commit: "dev"}
	violations, err = set.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(violations) != 1 || violations[0].Severity != types.SeverityWarn {
		t.Fatalf("expected single provenance warning, got %+v", violations)
	}
	if policy.Blocking(violations) {
		t.Fatalf("warnings must not block")
	}
}
