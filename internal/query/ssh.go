package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/pkg/sshutil"
)

// DialFunc opens an SSH connection. Tests replace it with a fake.
type DialFunc func(host string, timeout time.Duration) (sshutil.Executor, error)

// SSHRunner executes commands on a remote host over one shared SSH
// connection. The connection is opened on first use and re-opened after a
// transport failure.
type SSHRunner struct {
	host        string
	dialTimeout time.Duration
	dial        DialFunc
	log         logger.Logger

	mu     sync.Mutex
	client sshutil.Executor
}

// NewSSHRunner creates a runner for host (an ssh_config alias or user@host:port).
func NewSSHRunner(host string, dialTimeout time.Duration, log logger.Logger) *SSHRunner {
	if log == nil {
		log = logger.Noop()
	}
	return &SSHRunner{
		host:        host,
		dialTimeout: dialTimeout,
		log:         log,
		dial: func(host string, timeout time.Duration) (sshutil.Executor, error) {
			return sshutil.Dial(host, timeout)
		},
	}
}

// WithDialer swaps the dial function.
func (r *SSHRunner) WithDialer(dial DialFunc) *SSHRunner {
	r.dial = dial
	return r
}

// Host returns the configured remote host.
func (r *SSHRunner) Host() string {
	return r.host
}

// Run executes cmd on the remote host.
func (r *SSHRunner) Run(ctx context.Context, cmd Command, timeout time.Duration) (Output, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.connect()
	if err != nil {
		return Output{ExitCode: -1}, err
	}

	start := time.Now()
	r.log.Debug("remote %s on %s timeout=%s", cmd, r.host, timeout)
	stdout, stderr, code, err := client.Exec(runCtx, cmd.Line())
	out := Output{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: code,
		Duration: time.Since(start),
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctx.Err() != nil {
			return out, errors.WrapWithCode(ctx.Err(), errors.ErrTimeout,
				fmt.Sprintf("%s on %s was cancelled", cmd, r.host), "")
		}
		r.log.Warn("remote %s on %s killed after %s timeout", cmd, r.host, timeout)
		return out, errors.WrapWithCode(ctxErr, errors.ErrTimeout,
			fmt.Sprintf("%s on %s timed out after %s", cmd, r.host, timeout),
			"Raise query.timeout in netpilot.yaml if the host is just slow")
	}

	if err != nil {
		r.log.Warn("remote %s on %s failed, dropping connection: %v", cmd, r.host, err)
		r.reset(client)
		if errors.IsCode(err, errors.ErrSpawn) {
			return out, err
		}
		return out, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("Couldn't run %s on %s", cmd, r.host), "")
	}

	if code != 0 {
		return out, exitFailure(cmd, out)
	}
	return out, nil
}

// Close closes the shared connection, if any.
func (r *SSHRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *SSHRunner) connect() (sshutil.Executor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}

	client, err := r.dial(r.host, r.dialTimeout)
	if err != nil {
		// Dial failures are transient from the dispatcher's point of view.
		return nil, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("Couldn't connect to %s", r.host),
			"Check the host with: ssh "+r.host)
	}
	r.log.Info("connected to %s", r.host)
	r.client = client
	return client, nil
}

// reset drops client if it is still the shared connection.
func (r *SSHRunner) reset(client sshutil.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == client {
		_ = r.client.Close()
		r.client = nil
	}
}
