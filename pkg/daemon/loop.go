package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"

	srmetrics "github.com/fluxcd/servicereload/pkg/metrics"
)

// Loop ticks straight away, and then again each time the configured
// interval has passed since the previous tick dispatched its updates.
// Updates are not waited for, so a slow update may still be running
// when the next tick comes round; that service is skipped until it
// has finished.
//
// Closing stop ends the loop promptly, even in the middle of a tick.
// The tick and any updates in progress are abandoned: their context
// is cancelled, and their results are not collected.
func (d *Daemon) Loop(stop chan struct{}, wg *sync.WaitGroup, logger log.Logger) {
	defer wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	d.runTick(ctx, logger)
	tickTimer := d.Clock.NewTimer(d.Config.Interval())

	for {
		select {
		case <-stop:
			tickTimer.Stop()
			logger.Log("stopping", "true", "abandoned", d.inflight.len())
			return
		case <-tickTimer.Chan():
			d.runTick(ctx, logger)
			tickTimer.Reset(d.Config.Interval())
		case res := <-d.done:
			d.record(res, logger)
		}
	}
}

func (d *Daemon) runTick(ctx context.Context, logger log.Logger) {
	started := d.Clock.Now()
	err := d.Tick(ctx, logger)
	tickDuration.With(
		srmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(d.Clock.Since(started).Seconds())
	if err != nil {
		logger.Log("err", err)
	}
}
