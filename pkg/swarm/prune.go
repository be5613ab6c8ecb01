package swarm

import (
	"context"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/servicereload/pkg/run"
)

// PruneContainers removes all stopped containers.
func (c *Swarm) PruneContainers(ctx context.Context) error {
	level.Info(c.logger).Log("msg", "removing stopped containers")
	out, err := c.exec(ctx, "container prune", run.Cmd{Args: []string{"container", "prune", "--force"}})
	if err != nil {
		return errors.Wrap(err, "removing stopped containers")
	}
	level.Info(c.logger).Log("msg", "stopped containers removed", "output", lastLine(out.Stdout))
	return nil
}

// PruneImages removes all dangling images, i.e., those no tag refers to.
func (c *Swarm) PruneImages(ctx context.Context) error {
	level.Info(c.logger).Log("msg", "removing untagged images")
	out, err := c.exec(ctx, "image prune", run.Cmd{Args: []string{"image", "prune", "--force"}})
	if err != nil {
		return errors.Wrap(err, "removing untagged images")
	}
	level.Info(c.logger).Log("msg", "untagged images removed", "output", lastLine(out.Stdout))
	return nil
}

// lastLine picks out the "Total reclaimed space" summary.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
