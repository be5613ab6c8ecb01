package daemon

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	srerr "github.com/fluxcd/servicereload/pkg/errors"
	srmetrics "github.com/fluxcd/servicereload/pkg/metrics"
	"github.com/fluxcd/servicereload/pkg/swarm"
)

// dispatch starts the update of a service in the background, unless
// an update of the same service, started by an earlier tick, is still
// going.
func (d *Daemon) dispatch(ctx context.Context, service swarm.ServiceInfo, logger log.Logger) bool {
	if !d.inflight.acquire(service.Name) {
		level.Info(logger).Log("service", service.Name, "msg", "previous update still in progress; skipping")
		return false
	}
	go func() {
		start := d.Clock.Now()
		updated, err := d.updateService(ctx, service)
		d.inflight.release(service.Name)
		res := updateResult{
			service:  service,
			updated:  updated,
			err:      err,
			duration: d.Clock.Since(start),
		}
		select {
		case d.done <- res:
		case <-ctx.Done():
		}
	}()
	return true
}

// updateService pulls the service's image and, if that brought in a
// newer image, forces a redeploy and cleans up after it. It reports
// whether the service was redeployed.
func (d *Daemon) updateService(ctx context.Context, service swarm.ServiceInfo) (bool, error) {
	if service.Image == "" {
		return false, srerr.PullError("", errors.Wrapf(srerr.ErrEmptyImage, "service %s has no %s label", service.Name, swarm.ImageLabel))
	}
	changed, err := d.Cluster.PullIfNewer(ctx, service.Image)
	if err != nil || !changed {
		return false, err
	}
	if err := d.Cluster.ForceUpdate(ctx, service); err != nil {
		return false, err
	}
	if err := d.Cleanup(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// record logs the outcome of a service update and counts it.
func (d *Daemon) record(res updateResult, logger log.Logger) {
	logger = log.With(logger, "service", res.service.Name, "image", res.service.Image)
	updateDuration.With(
		srmetrics.LabelSuccess, fmt.Sprint(res.err == nil),
	).Observe(res.duration.Seconds())
	if res.updated {
		updatesTotal.With(srmetrics.LabelSuccess, fmt.Sprint(res.err == nil)).Add(1)
	}
	switch {
	case res.err != nil:
		level.Error(logger).Log("op", errorOp(res.err), "updated", res.updated, "err", res.err)
	case res.updated:
		level.Info(logger).Log("msg", "service updated to newer image")
	}
}

func errorOp(err error) string {
	for _, t := range []srerr.Type{srerr.Pull, srerr.Update, srerr.Cleanup} {
		if srerr.Is(err, t) {
			return string(t)
		}
	}
	return "unknown"
}
