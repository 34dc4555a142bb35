// Package operator talks to the person running the tool: the login-mode
// choice, "press Enter when done" pauses and retry confirmations.
package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

var (
	// ErrNotInteractive is returned when a prompt is needed but stdin or
	// stdout is not a terminal.
	ErrNotInteractive = errors.New("operator input needs an interactive terminal")

	// ErrAborted is returned when the operator interrupts a prompt.
	ErrAborted = errors.New("aborted by operator")
)

// LoginMode is how the run acquires its session.
type LoginMode int

const (
	LoginInteractive LoginMode = iota
	LoginCredentialFile
)

func (m LoginMode) String() string {
	switch m {
	case LoginInteractive:
		return "interactive"
	case LoginCredentialFile:
		return "credential-file"
	default:
		return fmt.Sprintf("login(%d)", int(m))
	}
}

// ParseLoginMode accepts the names printed by String, plus "1"/"2" as in the
// start-up menu.
func ParseLoginMode(s string) (LoginMode, error) {
	switch s {
	case "interactive", "1", "":
		return LoginInteractive, nil
	case "credential-file", "cookies", "2":
		return LoginCredentialFile, nil
	default:
		return LoginInteractive, fmt.Errorf("unknown login mode %q (want interactive or credential-file)", s)
	}
}

// Prompter is the operator I/O the run suspends on.
type Prompter interface {
	WaitForEnter(ctx context.Context, message string) error
	Confirm(ctx context.Context, message string) (bool, error)
	ChooseLogin(ctx context.Context) (LoginMode, error)
}

// Terminal prompts on a terminal with promptui.
type Terminal struct {
	in  *os.File
	out *os.File

	// interactive is overridable in tests.
	interactive func() bool
}

// NewTerminal creates a prompter over stdin/stdout.
func NewTerminal() *Terminal {
	return NewTerminalOn(os.Stdin, os.Stdout)
}

// NewTerminalOn creates a prompter over the given files.
func NewTerminalOn(in, out *os.File) *Terminal {
	t := &Terminal{in: in, out: out}
	t.interactive = func() bool {
		return term.IsTerminal(int(t.in.Fd())) && term.IsTerminal(int(t.out.Fd()))
	}
	return t
}

// Interactive reports whether prompts can be shown.
func (t *Terminal) Interactive() bool {
	return t.interactive()
}

// WaitForEnter blocks until the operator presses Enter.
func (t *Terminal) WaitForEnter(ctx context.Context, message string) error {
	if !t.Interactive() {
		return ErrNotInteractive
	}
	p := promptui.Prompt{
		Label:  message,
		Stdin:  io.NopCloser(t.in),
		Stdout: nopWriteCloser{t.out},
	}
	_, err := run(ctx, func() (string, error) { return p.Run() })
	return err
}

// Confirm asks a yes/no question; anything but yes is no.
func (t *Terminal) Confirm(ctx context.Context, message string) (bool, error) {
	if !t.Interactive() {
		return false, ErrNotInteractive
	}
	p := promptui.Prompt{
		Label:     message,
		IsConfirm: true,
		Stdin:     io.NopCloser(t.in),
		Stdout:    nopWriteCloser{t.out},
	}
	_, err := run(ctx, func() (string, error) { return p.Run() })
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ChooseLogin shows the login-mode menu. Interactive login is the default.
func (t *Terminal) ChooseLogin(ctx context.Context) (LoginMode, error) {
	if !t.Interactive() {
		return LoginInteractive, ErrNotInteractive
	}
	s := promptui.Select{
		Label: "How should the session be acquired",
		Items: []string{
			"Log in interactively in the browser window",
			"Use the saved credentials file",
		},
		Stdin:  io.NopCloser(t.in),
		Stdout: nopWriteCloser{t.out},
	}
	idx, err := run(ctx, func() (int, error) {
		i, _, err := s.Run()
		return i, err
	})
	if err != nil {
		return LoginInteractive, err
	}
	if idx == 1 {
		return LoginCredentialFile, nil
	}
	return LoginInteractive, nil
}

// run waits for a blocking prompt or the context, whichever ends first. An
// abandoned prompt goroutine ends when the process does.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn()
		done <- outcome{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case o := <-done:
		return o.v, mapPromptError(o.err)
	}
}

func mapPromptError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return ErrAborted
	default:
		return err
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Fixed answers prompts without a terminal: Enter is pressed at once,
// confirmations are declined and the login mode is preset. It is used for
// unattended runs.
type Fixed struct {
	Mode LoginMode
}

// WaitForEnter returns immediately.
func (Fixed) WaitForEnter(ctx context.Context, message string) error {
	return ctx.Err()
}

// Confirm always declines.
func (Fixed) Confirm(ctx context.Context, message string) (bool, error) {
	return false, ctx.Err()
}

// ChooseLogin returns the preset mode.
func (f Fixed) ChooseLogin(ctx context.Context) (LoginMode, error) {
	return f.Mode, ctx.Err()
}
