package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns its output.
// A non-zero exit status is reported through exitCode with a nil error.
// Exit code is -1 if the command couldn't be executed at all.
//
// When ctx is done the remote process gets SIGKILL and the session is closed,
// so Exec never outlives its context.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSpawn,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	if err := session.Start(cmd); err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("Failed to start remote command on %s", c.Host),
			"Check if the command exists on the remote host.")
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		// Not every server honours signals; closing the channel still ends it.
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, errors.WrapWithCode(ctx.Err(), errors.ErrTimeout,
			fmt.Sprintf("Remote command on %s was stopped", c.Host), "")
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("Remote command on %s failed", c.Host),
			"The SSH connection may have dropped. It will be re-established on the next query.")
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}
