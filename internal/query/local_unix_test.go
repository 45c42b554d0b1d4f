//go:build !windows

package query

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(script string) Command {
	return Command{Program: "/bin/sh", Args: []string{"-c", script}}
}

func TestLocalRunner_Success(t *testing.T) {
	r := NewLocalRunner(nil)

	out, err := r.Run(context.Background(), sh("echo '[{\"Name\":\"eth0\"}]'"), time.Second*5)
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "[{\"Name\":\"eth0\"}]\n", string(out.Stdout))
	assert.NotZero(t, out.PID)
	assert.NoError(t, r.Close())
}

func TestLocalRunner_NonZeroExit(t *testing.T) {
	r := NewLocalRunner(nil)

	out, err := r.Run(context.Background(), sh("echo 'Access is denied' >&2; exit 3"), 5*time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExit))
	assert.Equal(t, 3, out.ExitCode)

	var npErr *errors.Error
	require.ErrorAs(t, err, &npErr)
	assert.Contains(t, npErr.Short(), "Access is denied")
}

func TestLocalRunner_SpawnFailure(t *testing.T) {
	r := NewLocalRunner(nil)

	out, err := r.Run(context.Background(), Command{Program: "/definitely/not/here"}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSpawn))
	assert.Equal(t, -1, out.ExitCode)
}

func TestLocalRunner_TimeoutKillsProcess(t *testing.T) {
	log := logger.NewBufferLogger()
	r := NewLocalRunner(log)
	pidFile := filepath.Join(t.TempDir(), "pid")

	start := time.Now()
	_, err := r.Run(context.Background(), sh("echo $$ > "+pidFile+"; exec sleep 30"), 300*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout))
	assert.Less(t, elapsed, 5*time.Second)
	assert.True(t, log.HasLevel("warn"))

	raw, readErr := os.ReadFile(pidFile)
	require.NoError(t, readErr)
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, convErr)

	// The child has been killed and reaped
	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestLocalRunner_Cancelled(t *testing.T) {
	r := NewLocalRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Run(ctx, sh("exec sleep 30"), 10*time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout))
	assert.Contains(t, err.Error(), "cancelled")
}

func TestLocalRunner_DefaultTimeout(t *testing.T) {
	r := NewLocalRunner(nil)

	out, err := r.Run(context.Background(), sh("printf ok"), 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out.Stdout))
}
