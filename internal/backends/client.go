package backends

import (
	"context"
	"log/slog"
	"path/filepath"

	"vcshist/internal/errors"
	"vcshist/internal/paths"
	"vcshist/internal/runner"
	"vcshist/internal/slogutil"
)

// Client runs one backend's executable through a Runner.
// Adapters embed it to share argv construction and failure mapping.
type Client struct {
	Kind    Kind
	Command string
	Runner  runner.Runner
	Logger  *slog.Logger
}

// NewClient builds a client from adapter options
func NewClient(kind Kind, opts Options) *Client {
	r := opts.Runner
	if r == nil {
		r = runner.NewExecRunner(0, opts.Logger)
	}
	return &Client{
		Kind:    kind,
		Command: opts.Command,
		Runner:  r,
		Logger:  slogutil.OrDiscard(opts.Logger).With("backend", string(kind)),
	}
}

// Cmd builds a command run in dir
func (c *Client) Cmd(dir string, args ...string) runner.Command {
	return runner.Command{Path: c.Command, Args: args, Dir: dir}
}

// Run executes the client and returns the raw result, including non-zero exits
func (c *Client) Run(ctx context.Context, dir string, args ...string) (*runner.Result, error) {
	return c.Runner.Run(ctx, c.Cmd(dir, args...))
}

// Output executes the client and returns stdout, failing on a non-zero exit
func (c *Client) Output(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := c.Cmd(dir, args...)
	res, err := c.Runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, RetrievalError(cmd, res)
	}
	return res.Stdout, nil
}

// Stream executes the client, feeding stdout to fn, failing on a non-zero exit
func (c *Client) Stream(ctx context.Context, dir string, fn runner.LineFunc, args ...string) error {
	cmd := c.Cmd(dir, args...)
	res, err := c.Runner.Stream(ctx, cmd, fn)
	if err != nil {
		return err
	}
	if !res.Success() {
		return RetrievalError(cmd, res)
	}
	return nil
}

// RetrievalError reports a client invocation that exited non-zero.
// The message carries stderr verbatim.
func RetrievalError(cmd runner.Command, res *runner.Result) *errors.VcsError {
	msg := res.StderrString()
	if msg == "" {
		msg = "Command exited with non-zero status"
	}
	return errors.New(errors.RetrievalFailed, msg, nil).WithDetails(map[string]interface{}{
		"command":  cmd.String(),
		"exitCode": res.ExitCode,
		"dir":      cmd.Dir,
	})
}

// Unsupported reports an operation the backend does not implement
func Unsupported(kind Kind, op string) *errors.VcsError {
	return errors.New(errors.UnsupportedOperation, string(kind)+" does not support "+op, nil).WithDetails(map[string]interface{}{
		"backend":   string(kind),
		"operation": op,
	})
}

// ResolveFile splits file into its directory and basename. Relative paths
// are taken from root.
func ResolveFile(root, file string) (dir, base string, err error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	return paths.SplitFile(file)
}
