// Package process wraps external executable invocations behind a single,
// uniformly logged entry point. Every kubectl/docker/kubeval/kubeseal call
// made by the rest of this tool goes through a Runner.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrProcessFailure is returned (wrapped) when a checked command exits
// non-zero.
var ErrProcessFailure = errors.New("process exited with non-zero status")

// ErrProcessTimeout is returned (wrapped) when a command does not finish
// before its configured timeout elapses. Distinct from ErrProcessFailure so
// callers can tell a timeout apart from an ordinary non-zero exit.
var ErrProcessTimeout = errors.New("process timed out")

// Result carries the outcome of a non-streamed invocation.
type Result struct {
	ReturnCode int
	Stdout     []byte
	Stderr     []byte
}

// Options configures a single Run call. Argv is required; everything else
// has a zero-value-is-sensible default.
type Options struct {
	Argv    []string
	Cwd     string
	Env     []string // additional KEY=VALUE pairs appended to os.Environ()
	Check   bool     // fail on non-zero exit
	Stream  bool     // inherit stdio instead of capturing it
	Timeout time.Duration
	Stdin   []byte
}

// Failure describes a non-zero exit from a checked command, including the
// captured output so callers can surface it without re-running anything.
type Failure struct {
	Argv       []string
	ReturnCode int
	Stdout     string
	Stderr     string
}

func (f *Failure) Error() string {
	return "command failed: " + strings.Join(f.Argv, " ")
}

func (f *Failure) Unwrap() error {
	return ErrProcessFailure
}

// Runner executes external commands. The zero value is ready to use.
type Runner struct{}

// NewRunner returns a Runner. It exists mostly so call sites read like
// other constructors in this codebase and so a future stateful runner
// (e.g. one that records invocations for tests) is a drop-in replacement.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes opts.Argv and returns the captured result. Argv is logged
// before execution and the duration after, at info level, matching the
// source tool's behavior of always showing what it is about to do.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	log.Infof("  %s", strings.Join(opts.Argv, " "))

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, opts.Argv[0], opts.Argv[1:]...) // #nosec G204 -- argv is tool-constructed
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if len(opts.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if opts.Stream {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		log.Errorf("  timed out after %s: %s", duration, strings.Join(opts.Argv, " "))
		return nil, fmt.Errorf("%w: %s", ErrProcessTimeout, strings.Join(opts.Argv, " "))
	}

	if cmd.ProcessState == nil {
		log.Errorf("  failed to start: %s", strings.Join(opts.Argv, " "))
		return nil, fmt.Errorf("starting %s: %w", opts.Argv[0], err)
	}

	res := &Result{
		ReturnCode: cmd.ProcessState.ExitCode(),
		Stdout:     stdout.Bytes(),
		Stderr:     stderr.Bytes(),
	}

	if err != nil && opts.Check {
		logOutput(res.Stdout, res.Stderr)
		log.Errorf("  failed in %s", duration)
		return res, &Failure{
			Argv:       opts.Argv,
			ReturnCode: res.ReturnCode,
			Stdout:     string(res.Stdout),
			Stderr:     string(res.Stderr),
		}
	}

	log.Infof("  done in %s", duration)
	return res, nil
}

func logOutput(stdout, stderr []byte) {
	if len(stdout) > 0 {
		log.Errorf("  ----- STDOUT -----\n%s", strings.TrimSpace(string(stdout)))
	}
	if len(stderr) > 0 {
		log.Errorf("  ----- STDERR -----\n%s", strings.TrimSpace(string(stderr)))
	}
}
