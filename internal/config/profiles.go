package config

import (
	"fmt"
	"sort"
	"strings"
)

// Profile adjusts how the compiler is invoked.
type Profile struct {
	LDFlags  []string `yaml:"ldflags"`
	GCFlags  string   `yaml:"gcflags"`
	Tags     []string `yaml:"tags"`
	Trimpath *bool    `yaml:"trimpath"`
	Env      []string `yaml:"env"`
}

func boolPtr(v bool) *bool { return &v }

var builtinProfiles = map[string]Profile{
	"debug": {
		GCFlags: "all=-N -l",
	},
	"release": {
		LDFlags:  []string{"-s", "-w"},
		Trimpath: boolPtr(true),
	},
	"static": {
		LDFlags: []string{"-extldflags=-static"},
		Tags:    []string{"netgo", "osusergo"},
		Env:     []string{"CGO_ENABLED=0"},
	},
}

// ApplyProfiles merges the named profiles into c.Build. Profiles defined in
// the config file shadow built-in profiles of the same name.
func (c *Config) ApplyProfiles(names ...string) error {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		profile, ok := c.ProfileDefs[name]
		if !ok {
			profile, ok = builtinProfiles[name]
		}
		if !ok {
			return fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.AvailableProfiles(), ", "))
		}
		c.Build.merge(profile)
		if !contains(c.Applied, name) {
			c.Applied = append(c.Applied, name)
		}
	}
	return nil
}

func (p *Profile) merge(other Profile) {
	for _, flag := range other.LDFlags {
		if !contains(p.LDFlags, flag) {
			p.LDFlags = append(p.LDFlags, flag)
		}
	}
	if other.GCFlags != "" {
		p.GCFlags = other.GCFlags
	}
	for _, tag := range other.Tags {
		if !contains(p.Tags, tag) {
			p.Tags = append(p.Tags, tag)
		}
	}
	if other.Trimpath != nil {
		p.Trimpath = boolPtr(*other.Trimpath)
	}
	for _, kv := range other.Env {
		key := kv
		if idx := strings.Index(kv, "="); idx >= 0 {
			key = kv[:idx]
		}
		replaced := false
		for i, existing := range p.Env {
			if strings.HasPrefix(existing, key+"=") || existing == key {
				p.Env[i] = kv
				replaced = true
				break
			}
		}
		if !replaced {
			p.Env = append(p.Env, kv)
		}
	}
}

// TrimpathEnabled reports whether -trimpath is requested.
func (p Profile) TrimpathEnabled() bool {
	return p.Trimpath != nil && *p.Trimpath
}

// AvailableProfiles returns a sorted list of built-in and configured profile names.
func (c Config) AvailableProfiles() []string {
	seen := map[string]struct{}{}
	for name := range builtinProfiles {
		seen[name] = struct{}{}
	}
	for name := range c.ProfileDefs {
		seen[strings.ToLower(name)] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
