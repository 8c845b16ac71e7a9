package envsetup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/oh-my-dot/dotbuild/internal/env"
)

var instructionsTemplate = template.Must(template.New("instructions").Funcs(sprig.TxtFuncMap()).Parse(
	`Add the following lines to {{ .ProfileFile }} to put the debug build on your PATH:

{{ if eq .Shell "fish" -}}
set -gx {{ .DebugEnv }} {{ .Target | squote }}
set -gx PATH ${{ .DebugEnv }} $PATH
{{- else -}}
export {{ .DebugEnv }}={{ .Target | squote }}
export PATH="${{ .DebugEnv }}:$PATH"
{{- end }}

Then open a new shell or run: source {{ .ProfileFile }}
`))

// Unix prints shell instructions when the inherited debug variable does not
// point at the target. It never writes files or the process environment.
type Unix struct {
	Env      env.Provider
	DebugEnv string
	GOOS     string
	Out      io.Writer
}

// Configure implements Configurator.
func (u *Unix) Configure(_ context.Context, target string) (Result, error) {
	res := Result{Target: target}
	current := env.Get(u.Env, u.DebugEnv)
	if current != "" && filepath.Clean(current) == filepath.Clean(target) {
		return res, nil
	}
	shell := DetectShell(u.Env)
	res.ProfileFile = ProfileFile(shell, u.GOOS, u.Env)

	var buf bytes.Buffer
	data := map[string]string{
		"ProfileFile": res.ProfileFile,
		"Shell":       shell,
		"DebugEnv":    u.DebugEnv,
		"Target":      target,
	}
	if err := instructionsTemplate.Execute(&buf, data); err != nil {
		return res, fmt.Errorf("render instructions: %w", err)
	}
	res.Instructions = buf.String()
	if u.Out != nil {
		if _, err := io.WriteString(u.Out, res.Instructions); err != nil {
			return res, fmt.Errorf("write instructions: %w", err)
		}
	}
	return res, nil
}

// DetectShell names the user's shell from $SHELL: zsh, bash, fish or posix.
func DetectShell(p env.Provider) string {
	name := strings.ToLower(filepath.Base(strings.TrimSpace(env.Get(p, "SHELL"))))
	name = strings.TrimSuffix(name, ".exe")
	switch name {
	case "zsh", "bash", "fish":
		return name
	default:
		return "posix"
	}
}

// ProfileFile returns the startup file the instructions should go into.
func ProfileFile(shell, goos string, p env.Provider) string {
	switch shell {
	case "zsh":
		if dir := strings.TrimSpace(env.Get(p, "ZDOTDIR")); dir != "" {
			return filepath.Join(dir, ".zshrc")
		}
		return "~/.zshrc"
	case "bash":
		if goos == "darwin" {
			return "~/.bash_profile"
		}
		return "~/.bashrc"
	case "fish":
		return "~/.config/fish/config.fish"
	default:
		return "~/.profile"
	}
}
