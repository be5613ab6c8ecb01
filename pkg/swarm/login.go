package swarm

import (
	"context"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	srerr "github.com/fluxcd/servicereload/pkg/errors"
	"github.com/fluxcd/servicereload/pkg/run"
)

// Login authenticates the docker client against registry. The
// password goes in on stdin, so it never shows in the process table.
// An empty registry means the client's default; what happens with no
// credentials at all is up to the docker CLI.
//
// docker login writes warnings (e.g., about credential storage) to
// stderr even when it succeeds, so only the exit status counts here.
func (c *Swarm) Login(ctx context.Context, registry, user, password string) error {
	args := []string{"login"}
	if user != "" {
		args = append(args, "--username", user)
	}
	cmd := run.Cmd{}
	if password != "" {
		args = append(args, "--password-stdin")
		cmd.Stdin = password
	}
	if registry != "" {
		args = append(args, registry)
	}
	cmd.Args = args

	logger := log.With(c.logger, "registry", registry, "user", user)
	out, err := c.exec(ctx, "login", cmd)
	if err != nil {
		return srerr.AuthError(errors.Wrap(err, "cannot login"))
	}
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
		level.Warn(logger).Log("msg", "login reported", "stderr", stderr)
	}
	level.Info(logger).Log("msg", "logged in", "output", strings.TrimSpace(out.Stdout))
	return nil
}
