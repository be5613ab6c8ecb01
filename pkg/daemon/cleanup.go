package daemon

import (
	"context"

	"go.uber.org/multierr"

	srerr "github.com/fluxcd/servicereload/pkg/errors"
)

// Cleanup removes stopped containers and then dangling images, each
// only if configured to. The two are independent: a failure to remove
// containers doesn't stop the images being removed. Any failures are
// returned together.
func (d *Daemon) Cleanup(ctx context.Context) error {
	d.cleanupMu.Lock()
	defer d.cleanupMu.Unlock()

	var err error
	if d.Config.PruneContainers {
		err = multierr.Append(err, d.Cluster.PruneContainers(ctx))
	}
	if d.Config.PruneImages {
		err = multierr.Append(err, d.Cluster.PruneImages(ctx))
	}
	if err != nil {
		return srerr.CleanupError(err)
	}
	return nil
}
