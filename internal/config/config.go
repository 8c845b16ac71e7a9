package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oh-my-dot/dotbuild/internal/schema"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = ".dotbuild.yaml"

// Symbols names the package-qualified variables stamped at link time.
type Symbols struct {
	Version string `yaml:"version"`
	Commit  string `yaml:"commit"`
}

// Config is the runtime build configuration.
type Config struct {
	Package      string             `yaml:"package"`
	Compiler     string             `yaml:"compiler"`
	Git          string             `yaml:"git"`
	Symbols      Symbols            `yaml:"symbols"`
	VersionEnv   string             `yaml:"versionEnv"`
	DebugEnv     string             `yaml:"debugEnv"`
	CanarySuffix string             `yaml:"canarySuffix"`
	Profiles     []string           `yaml:"profiles"`
	ProfileDefs  map[string]Profile `yaml:"profileDefs"`
	Policies     []string           `yaml:"policies"`
	WindowsStore string             `yaml:"windowsStore"`

	// Build is the merged result of every applied profile.
	Build Profile `yaml:"-"`
	// Applied lists the profiles merged into Build, in order.
	Applied []string `yaml:"-"`
	// Dir is the directory of the loaded file, used to resolve policy paths.
	Dir string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Package:      ".",
		Compiler:     "go",
		Git:          "git",
		Symbols:      Symbols{Version: "github.com/PatrickMatthiesen/oh-my-dot/cmd.Version", Commit: "github.com/PatrickMatthiesen/oh-my-dot/cmd.CommitHash"},
		VersionEnv:   "ohmydot_version",
		DebugEnv:     "ohmydot_debug",
		CanarySuffix: "canary",
		WindowsStore: "powershell",
	}
}

// Load reads configuration from file and fills unset keys with defaults.
// An empty path tries DefaultFile in the working directory and falls back
// to Default when it does not exist.
func Load(path string) (Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultFile
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.ApplyProfiles()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.Dir = abs
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, cfg.ApplyProfiles()
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := schema.ValidateConfig(doc); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.ApplyProfiles(cfg.Profiles...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if strings.TrimSpace(c.Package) == "" {
		c.Package = def.Package
	}
	if strings.TrimSpace(c.Compiler) == "" {
		c.Compiler = def.Compiler
	}
	if strings.TrimSpace(c.Git) == "" {
		c.Git = def.Git
	}
	if strings.TrimSpace(c.Symbols.Version) == "" {
		c.Symbols.Version = def.Symbols.Version
	}
	if strings.TrimSpace(c.Symbols.Commit) == "" {
		c.Symbols.Commit = def.Symbols.Commit
	}
	if strings.TrimSpace(c.VersionEnv) == "" {
		c.VersionEnv = def.VersionEnv
	}
	if strings.TrimSpace(c.DebugEnv) == "" {
		c.DebugEnv = def.DebugEnv
	}
	if strings.TrimSpace(c.CanarySuffix) == "" {
		c.CanarySuffix = def.CanarySuffix
	}
	if strings.TrimSpace(c.WindowsStore) == "" {
		c.WindowsStore = def.WindowsStore
	}
	if len(c.ProfileDefs) > 0 {
		defs := make(map[string]Profile, len(c.ProfileDefs))
		for name, p := range c.ProfileDefs {
			defs[strings.ToLower(strings.TrimSpace(name))] = p
		}
		c.ProfileDefs = defs
	}
}

// PolicyPaths resolves configured policy paths against the config directory.
func (c Config) PolicyPaths() []string {
	paths := make([]string, 0, len(c.Policies))
	for _, p := range c.Policies {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if !filepath.IsAbs(p) && c.Dir != "" {
			p = filepath.Join(c.Dir, p)
		}
		paths = append(paths, p)
	}
	return paths
}
