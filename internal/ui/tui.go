// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the bridge dashboard
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the dashboard program
type TUI struct {
	program *tea.Program
	done    chan struct{}
}

// New creates a dashboard for the given model
func New(model Model, opts ...tea.ProgramOption) *TUI {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		done:    make(chan struct{}),
	}
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	defer close(t.done)
	_, err := t.program.Run()
	return err
}

// Done is closed when Run returns
func (t *TUI) Done() <-chan struct{} {
	return t.done
}

// Send pushes a message into the program
func (t *TUI) Send(msg tea.Msg) {
	t.program.Send(msg)
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}
