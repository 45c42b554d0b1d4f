package query

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/util"
)

// defaultWaitDelay bounds how long Wait keeps draining pipes after the
// process was killed (grandchildren can hold them open).
const defaultWaitDelay = 2 * time.Second

// LocalRunner executes commands on this machine.
type LocalRunner struct {
	log       logger.Logger
	waitDelay time.Duration
}

// NewLocalRunner creates a runner for local processes.
func NewLocalRunner(log logger.Logger) *LocalRunner {
	if log == nil {
		log = logger.Noop()
	}
	return &LocalRunner{log: log, waitDelay: defaultWaitDelay}
}

// Run starts cmd and waits for it. On timeout or cancellation the process
// (and on Unix its whole process group) is killed and reaped before Run
// returns.
func (r *LocalRunner) Run(ctx context.Context, cmd Command, timeout time.Duration) (Output, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = r.waitDelay
	configureProcess(c)

	start := time.Now()
	if err := c.Start(); err != nil {
		r.log.Warn("spawn %s failed: %v", cmd, err)
		return Output{ExitCode: -1}, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("Couldn't start %s", cmd),
			"Check the program is installed and on PATH")
	}

	pid := c.Process.Pid
	r.log.Debug("started %s pid=%d timeout=%s", cmd, pid, timeout)

	waitErr := c.Wait()
	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		PID:      pid,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		out.ExitCode = c.ProcessState.ExitCode()
	}

	// Context errors take precedence: a killed process also reports an ExitError.
	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctx.Err() != nil {
			r.log.Debug("%s pid=%d cancelled after %s", cmd, pid, out.Duration.Round(time.Millisecond))
			return out, errors.WrapWithCode(ctx.Err(), errors.ErrTimeout,
				fmt.Sprintf("%s was cancelled", cmd), "")
		}
		r.log.Warn("%s pid=%d killed after %s timeout", cmd, pid, timeout)
		return out, errors.WrapWithCode(ctxErr, errors.ErrTimeout,
			fmt.Sprintf("%s timed out after %s", cmd, timeout),
			"Raise query.timeout in netpilot.yaml if the system is just slow")
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(waitErr, &exitErr) {
			return out, exitFailure(cmd, out)
		}
		// I/O errors while copying output, or WaitDelay expiry.
		return out, errors.WrapWithCode(waitErr, errors.ErrSpawn,
			fmt.Sprintf("%s failed while running", cmd), "")
	}

	r.log.Debug("%s pid=%d finished in %s", cmd, pid, out.Duration.Round(time.Millisecond))
	return out, nil
}

// Close is a no-op; local processes hold no shared connection.
func (r *LocalRunner) Close() error {
	return nil
}

// exitFailure builds the NonZeroExit error, preferring stderr for the reason.
func exitFailure(cmd Command, out Output) *errors.Error {
	reason := util.FirstLine(string(out.Stderr))
	if reason == "" {
		reason = util.FirstLine(string(out.Stdout))
	}
	if reason == "" {
		reason = "no output"
	}
	return errors.WrapWithCode(stderrors.New(reason), errors.ErrExit,
		fmt.Sprintf("%s exited with code %d", cmd, out.ExitCode), "")
}
