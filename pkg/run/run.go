package run

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

const waitDelay = time.Second

// Cmd is one invocation of the external tool: the arguments after
// the binary name, and optionally something to feed it on stdin.
type Cmd struct {
	Args  []string
	Stdin string
}

func (c Cmd) String() string {
	return strings.Join(c.Args, " ")
}

// Output is what the command wrote. Stderr is kept apart from Stdout
// because most callers treat anything on stderr as a failure, whatever
// the exit status.
type Output struct {
	Stdout string
	Stderr string
}

// Runner invokes an external command and captures what it wrote.
// Run returns an error only when the command could not be started,
// exited with a non-zero status, or was cut short by the context;
// the output captured so far is returned in every case.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Output, error)
}

// Exec is a Runner that executes Binary as a child process.
type Exec struct {
	Binary string
	// Timeout bounds each invocation; zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
	Logger  log.Logger
}

var _ Runner = &Exec{}

func (e *Exec) Run(ctx context.Context, cmd Cmd) (Output, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	if e.Logger != nil {
		level.Debug(e.Logger).Log("exec", e.Binary, "args", cmd.String())
	}

	c := exec.CommandContext(ctx, e.Binary, cmd.Args...)
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	c.Stdout = stdout
	c.Stderr = stderr
	// Don't wait on grandchildren holding the pipes open once the
	// command itself has been killed.
	c.WaitDelay = waitDelay

	err := c.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		return out, errors.Wrap(ctx.Err(), fmt.Sprintf("running command: %s %s", e.Binary, cmd))
	case context.Canceled:
		return out, errors.Wrap(ctx.Err(), fmt.Sprintf("context was cancelled when running command: %s %s", e.Binary, cmd))
	}
	if err != nil {
		if msg := strings.TrimSpace(out.Stderr); msg != "" {
			return out, errors.Wrapf(err, "%s %s: %s", e.Binary, cmd, msg)
		}
		return out, errors.Wrapf(err, "%s %s", e.Binary, cmd)
	}
	return out, nil
}
