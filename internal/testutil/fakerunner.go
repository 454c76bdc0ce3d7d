package testutil

import (
	"context"
	"strings"
	"sync"

	"vcshist/internal/errors"
	"vcshist/internal/runner"
)

// FakeRunner is a scripted runner.Runner. Responses are matched on the exact
// argument vector; the executable path is recorded but not matched.
type FakeRunner struct {
	mu      sync.Mutex
	stubs   map[string]*Stub
	calls   []runner.Command
	missing bool
}

// Stub is the scripted outcome of one argument vector.
type Stub struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

// NewFakeRunner creates a runner with no scripted commands
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{stubs: make(map[string]*Stub)}
}

// NewMissingRunner creates a runner that behaves as if the executable is not installed
func NewMissingRunner() *FakeRunner {
	f := NewFakeRunner()
	f.missing = true
	return f
}

func key(args []string) string {
	return strings.Join(args, "\x00")
}

// On scripts the response for args. It defaults to a successful empty output.
func (f *FakeRunner) On(args ...string) *Stub {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &Stub{}
	f.stubs[key(args)] = s
	return s
}

// Returns sets stdout
func (s *Stub) Returns(stdout string) *Stub {
	s.stdout = stdout
	return s
}

// Fails sets a non-zero exit status and stderr
func (s *Stub) Fails(exitCode int, stderr string) *Stub {
	s.exitCode = exitCode
	s.stderr = stderr
	return s
}

// Errors makes the runner itself fail, e.g. with a timeout
func (s *Stub) Errors(err error) *Stub {
	s.err = err
	return s
}

func (f *FakeRunner) lookup(cmd runner.Command) (*Stub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)
	if f.missing {
		return nil, errors.New(errors.ToolNotAvailable, "Command not found", nil)
	}
	s, ok := f.stubs[key(cmd.Args)]
	if !ok {
		return &Stub{exitCode: 127, stderr: "unexpected command: " + cmd.String()}, nil
	}
	return s, nil
}

// Run returns the scripted result for cmd
func (f *FakeRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	s, err := f.lookup(cmd)
	if err != nil {
		return nil, err
	}
	if s.err != nil {
		return &runner.Result{ExitCode: -1}, s.err
	}
	return &runner.Result{
		ExitCode: s.exitCode,
		Stdout:   []byte(s.stdout),
		Stderr:   []byte(s.stderr),
	}, nil
}

// Stream feeds the scripted stdout to fn line by line
func (f *FakeRunner) Stream(ctx context.Context, cmd runner.Command, fn runner.LineFunc) (*runner.Result, error) {
	s, err := f.lookup(cmd)
	if err != nil {
		return nil, err
	}
	if s.err != nil {
		return &runner.Result{ExitCode: -1}, s.err
	}
	if err := runner.FeedLines([]byte(s.stdout), fn); err != nil {
		return &runner.Result{ExitCode: -1}, err
	}
	return &runner.Result{ExitCode: s.exitCode, Stderr: []byte(s.stderr)}, nil
}

// Calls returns the commands run so far
func (f *FakeRunner) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]runner.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many times args was run
func (f *FakeRunner) Count(args ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := key(args)
	n := 0
	for _, c := range f.calls {
		if key(c.Args) == k {
			n++
		}
	}
	return n
}

// CountPrefix returns how many commands started with the given arguments
func (f *FakeRunner) CountPrefix(args ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if len(c.Args) < len(args) {
			continue
		}
		match := true
		for i, a := range args {
			if c.Args[i] != a {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}
