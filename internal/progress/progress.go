// Package progress shows a spinner while long external commands run.
package progress

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// Indicator is started before and stopped after a blocking step.
type Indicator interface {
	Start(message string)
	Stop()
}

// Nop is an Indicator that does nothing.
type Nop struct{}

func (Nop) Start(string) {}
func (Nop) Stop()        {}

// Spinner draws a terminal spinner on its writer.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner returns a spinner drawing on w.
func NewSpinner(w io.Writer) *Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(w))
	s.Color("yellow") //nolint:errcheck
	return &Spinner{s: s}
}

// Start begins spinning with message as the suffix.
func (p *Spinner) Start(message string) {
	p.s.Suffix = " " + message
	p.s.Start()
}

// Stop clears the spinner.
func (p *Spinner) Stop() {
	p.s.Stop()
}

// For returns a spinner when w is a terminal and verbose logging is off,
// otherwise Nop.
func For(w io.Writer, verbose bool) Indicator {
	if verbose || !IsTerminal(w) {
		return Nop{}
	}
	return NewSpinner(w)
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
