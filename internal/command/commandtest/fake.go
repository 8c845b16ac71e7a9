// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/oh-my-dot/dotbuild/internal/command"
)

// Response is the canned outcome for one command line.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Call records an invocation.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Fake answers commands from a table keyed by command line. Unknown
// command lines fail with exit code 127.
type Fake struct {
	Responses map[string]Response
	// Handler, when set, is consulted before Responses.
	Handler func(call Call) (Response, bool)
	Calls   []Call
}

// New returns a Fake with the given responses.
func New(responses map[string]Response) *Fake {
	if responses == nil {
		responses = map[string]Response{}
	}
	return &Fake{Responses: responses}
}

// Run implements command.Runner.
func (f *Fake) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.Calls = append(f.Calls, call)
	resp, ok := Response{}, false
	if f.Handler != nil {
		resp, ok = f.Handler(call)
	}
	if !ok {
		resp, ok = f.Responses[call.String()]
	}
	if !ok {
		resp = Response{Stderr: "command not found: " + call.String(), ExitCode: 127}
	}
	res := command.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &command.Error{
			Name:     name,
			Args:     call.Args,
			ExitCode: resp.ExitCode,
			Output:   res.Output(),
			Err:      fmt.Errorf("exit status %d", resp.ExitCode),
		}
	}
	return res, nil
}

// CallLines returns every recorded call as a command line.
func (f *Fake) CallLines() []string {
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, c.String())
	}
	return lines
}
