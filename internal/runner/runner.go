// Package runner executes version-control client commands.
//
// Commands are passed as argument vectors, never through a shell. A non-zero
// exit status is reported in the Result rather than as an error: the caller
// decides whether it means failure or a recognised "nothing there" answer.
package runner

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"vcshist/internal/errors"
	"vcshist/internal/slogutil"
)

// DefaultTimeout bounds a single client invocation when none is configured
const DefaultTimeout = 60 * time.Second

// maxLineSize is the longest stdout line Stream accepts (long blame lines, big comments)
const maxLineSize = 4 * 1024 * 1024

// Command describes one client invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env replaces the environment when non-nil
	Env []string
}

// String renders the command as a shell-quoted line for logs and error details.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Path}, c.Args...)...)
}

// Result holds the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the process exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// StdoutString returns stdout with surrounding whitespace removed.
func (r *Result) StdoutString() string {
	return strings.TrimSpace(string(r.Stdout))
}

// StderrString returns stderr with surrounding whitespace removed.
func (r *Result) StderrString() string {
	return strings.TrimSpace(string(r.Stderr))
}

// LineFunc receives one stdout line without its newline. A carriage return
// before the newline is kept.
// Returning an error stops the stream and terminates the process.
type LineFunc func(line string) error

// Runner executes commands. Implementations must be safe for concurrent use.
type Runner interface {
	// Run executes cmd and captures stdout and stderr.
	Run(ctx context.Context, cmd Command) (*Result, error)
	// Stream executes cmd, handing stdout to fn line by line. Result.Stdout is empty.
	Stream(ctx context.Context, cmd Command, fn LineFunc) (*Result, error)
}

// ExecRunner runs commands with os/exec, killing them when Timeout elapses.
type ExecRunner struct {
	Timeout time.Duration
	logger  *slog.Logger
}

// NewExecRunner creates an ExecRunner. A zero timeout selects DefaultTimeout.
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{
		Timeout: timeout,
		logger:  slogutil.OrDiscard(logger),
	}
}

// Run executes cmd and captures its output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	c := r.prepare(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	return r.finish(ctx, cmd, result, err)
}

// Stream executes cmd and feeds stdout to fn as it is produced.
func (r *ExecRunner) Stream(ctx context.Context, cmd Command, fn LineFunc) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	c := r.prepare(ctx, cmd)
	c.Stderr = &stderr

	pipe, err := c.StdoutPipe()
	if err != nil {
		return nil, errors.New(errors.InternalError, "Failed to open stdout pipe", err)
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		return nil, r.startError(cmd, err)
	}

	lineErr := scanLines(pipe, fn)
	if lineErr != nil {
		// Stop the process; the rest of its output is of no use.
		cancel()
		_, _ = io.Copy(io.Discard, pipe)
	}

	waitErr := c.Wait()
	result := &Result{
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if lineErr != nil {
		result.ExitCode = -1
		return result, lineErr
	}
	return r.finish(ctx, cmd, result, waitErr)
}

func (r *ExecRunner) prepare(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Env != nil {
		c.Env = cmd.Env
	}
	c.WaitDelay = time.Second

	r.logger.Debug("Executing command",
		"command", cmd.String(),
		"dir", cmd.Dir,
		"timeout", r.Timeout,
	)
	return c
}

// finish maps the process error onto the Result or a typed error.
func (r *ExecRunner) finish(ctx context.Context, cmd Command, result *Result, err error) (*Result, error) {
	if err == nil {
		return result, nil
	}

	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		return result, errors.New(errors.Timeout, "Command timed out", err).WithDetails(map[string]interface{}{
			"command": cmd.String(),
			"timeout": r.Timeout.String(),
		})
	}

	// A process killed on cancellation also reports an ExitError
	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		r.logger.Debug("Command exited non-zero",
			"command", cmd.String(),
			"exitCode", result.ExitCode,
			"duration", result.Duration,
		)
		return result, nil
	}

	return nil, r.startError(cmd, err)
}

func (r *ExecRunner) startError(cmd Command, err error) error {
	var pathErr *fs.PathError
	if stderrors.Is(err, exec.ErrNotFound) || stderrors.As(err, &pathErr) {
		return errors.New(errors.ToolNotAvailable, "Command not found", err).WithDetails(map[string]interface{}{
			"command": cmd.Path,
		})
	}
	return errors.New(errors.InternalError, "Failed to execute command", err).WithDetails(map[string]interface{}{
		"command": cmd.String(),
	})
}

// scanLine is bufio.ScanLines without the carriage-return stripping, so
// CRLF file content reaches parsers intact.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// scanLines feeds r to fn line by line.
func scanLines(r io.Reader, fn LineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(scanLine)
	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.New(errors.MalformedOutput, "Failed to read command output", err)
	}
	return nil
}

// FeedLines splits captured output into lines and hands them to fn, the same
// way Stream does for live output. It lets parsers consume either form.
func FeedLines(output []byte, fn LineFunc) error {
	return scanLines(bytes.NewReader(output), fn)
}
