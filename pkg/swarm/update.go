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

// ForceUpdate asks the orchestrator to redeploy the service with its
// image, even though the reference in its spec hasn't changed. It
// returns once the request is acknowledged; it does not wait for the
// rollout to converge.
func (c *Swarm) ForceUpdate(ctx context.Context, service ServiceInfo) error {
	if service.Image == "" {
		return srerr.UpdateError(service.Name, srerr.ErrEmptyImage)
	}
	logger := log.With(c.logger, "service", service.Name, "image", service.Image)

	args := []string{"service", "update", "--force", "--image", service.Image}
	if c.withRegistryAuth {
		args = append(args, "--with-registry-auth")
	}
	args = append(args, "--detach", service.Name)

	level.Info(logger).Log("msg", "updating service")
	out, err := c.exec(ctx, "service update", run.Cmd{Args: args})
	if err != nil {
		return srerr.UpdateError(service.Name, errors.Wrap(err, "cannot update service"))
	}
	if out.Stderr != "" {
		return srerr.UpdateError(service.Name, errors.Errorf("cannot update service: %s", strings.TrimSpace(out.Stderr)))
	}
	level.Info(logger).Log("msg", "service updated", "output", strings.TrimSpace(out.Stdout))
	return nil
}
