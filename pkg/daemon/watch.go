package daemon

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/fluxcd/servicereload/pkg/swarm"
)

// At most this many `service inspect`s run at once.
const inspectConcurrency = 16

// Tick does one pass over the cluster: list the services, inspect all
// of them, and start an update for each that has opted in. It returns
// once the updates are dispatched, without waiting for them; each
// reports on d.done when it's finished.
//
// A failure to list or inspect services abandons the tick, and no
// updates are started.
func (d *Daemon) Tick(ctx context.Context, logger log.Logger) error {
	refs, err := d.Cluster.ListServices(ctx)
	if err != nil {
		return err
	}
	infos, err := d.inspectAll(ctx, refs)
	if err != nil {
		return err
	}
	enabled := enabledServices(infos)
	servicesWatched.Set(float64(len(enabled)))

	if d.Config.Verbose {
		var detected []string
		for _, s := range enabled {
			detected = append(detected, fmt.Sprintf("%s %s", s.Name, s.Image))
		}
		level.Debug(logger).Log("services", len(refs), "watched", len(enabled), "detected", strings.Join(detected, ", "))
	}

	for _, service := range enabled {
		d.dispatch(ctx, service, logger)
	}
	return nil
}

// inspectAll inspects the services concurrently. All of them have to
// be inspected for the tick to go ahead: the first failure cancels
// the rest and is returned.
func (d *Daemon) inspectAll(ctx context.Context, refs []swarm.ServiceRef) ([]swarm.ServiceInfo, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(inspectConcurrency)
	infos := make([]swarm.ServiceInfo, len(refs))
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			info, err := d.Cluster.Inspect(ctx, ref.Name)
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func enabledServices(infos []swarm.ServiceInfo) []swarm.ServiceInfo {
	var enabled []swarm.ServiceInfo
	for _, info := range infos {
		if info.Enabled {
			enabled = append(enabled, info)
		}
	}
	return enabled
}
