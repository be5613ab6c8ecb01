package run

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell() *Exec {
	return &Exec{Binary: "sh", Logger: log.NewNopLogger()}
}

func TestExecCapturesStreamsSeparately(t *testing.T) {
	out, err := shell().Run(context.Background(), Cmd{Args: []string{"-c", "echo out; echo err >&2"}})
	require.NoError(t, err)
	assert.Equal(t, "out\n", out.Stdout)
	assert.Equal(t, "err\n", out.Stderr)
}

func TestExecFeedsStdin(t *testing.T) {
	out, err := shell().Run(context.Background(), Cmd{Args: []string{"-c", "cat"}, Stdin: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", out.Stdout)
}

func TestExecNonZeroExit(t *testing.T) {
	out, err := shell().Run(context.Background(), Cmd{Args: []string{"-c", "echo nope >&2; exit 3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, "nope\n", out.Stderr)
}

func TestExecTimeout(t *testing.T) {
	e := shell()
	e.Timeout = 50 * time.Millisecond
	start := time.Now()
	_, err := e.Run(context.Background(), Cmd{Args: []string{"-c", "sleep 5"}})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.True(t, time.Since(start) < 5*time.Second)
}

func TestExecMissingBinary(t *testing.T) {
	e := &Exec{Binary: "/nonexistent/docker"}
	_, err := e.Run(context.Background(), Cmd{Args: []string{"version"}})
	assert.Error(t, err)
}
