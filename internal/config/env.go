package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces the process settings.
const EnvPrefix = "DOTBUILD"

// Settings are process-level knobs read from DOTBUILD_* variables.
type Settings struct {
	ConfigFile string `envconfig:"CONFIG"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error disabled"`
	SkipEnv    bool   `envconfig:"SKIP_ENV"`
}

// LoadSettings reads an optional dotenv file and then the DOTBUILD_*
// environment. Variables already set in the process win over the file.
// An empty dotenv path means ".env".
//
// Only DOTBUILD_* keys are taken from the file, and the process
// environment is left as it was found once LoadSettings returns.
func LoadSettings(dotenv string) (Settings, error) {
	if dotenv == "" {
		dotenv = ".env"
	}
	fileVars, err := godotenv.Read(dotenv)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load %s: %w", dotenv, err)
	}
	restore, err := overlaySettings(fileVars)
	defer restore()
	if err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("process environment: %w", err)
	}
	if err := validator.New().Struct(s); err != nil {
		return Settings{}, fmt.Errorf("validate environment: %w", err)
	}
	return s, nil
}

// overlaySettings exports the unset DOTBUILD_* keys of vars for the
// duration of envconfig.Process. The returned func unsets them again.
func overlaySettings(vars map[string]string) (func(), error) {
	var added []string
	restore := func() {
		for _, key := range added {
			os.Unsetenv(key) //nolint:errcheck
		}
	}
	for key, value := range vars {
		if !strings.HasPrefix(key, EnvPrefix+"_") {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return restore, fmt.Errorf("set %s: %w", key, err)
		}
		added = append(added, key)
	}
	return restore, nil
}
