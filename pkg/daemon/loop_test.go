package daemon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/servicereload/pkg/run"
)

// startLoop runs the loop on a fake clock, and returns a channel that
// receives each time the services are listed.
func startLoop(t *testing.T, intervalSeconds int, listErr error) (clockwork.FakeClock, <-chan struct{}, func()) {
	cfg := testConfig()
	cfg.IntervalSeconds = intervalSeconds
	d, runner := mockDaemon(t, cfg)
	clock := clockwork.NewFakeClock()
	d.Clock = clock

	listed := make(chan struct{}, 10)
	runner.RunFunc = func(ctx context.Context, cmd run.Cmd) (run.Output, error) {
		if cmd.String() == listCmd {
			listed <- struct{}{}
			return run.Output{}, listErr
		}
		return run.Output{}, nil
	}

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go d.Loop(stop, wg, log.NewNopLogger())

	return clock, listed, func() {
		close(stop)
		wg.Wait()
	}
}

func expectListing(t *testing.T, listed <-chan struct{}) {
	select {
	case <-listed:
	case <-time.After(timeout):
		t.Fatal("services were not listed")
	}
}

func expectNoListing(t *testing.T, listed <-chan struct{}) {
	select {
	case <-listed:
		t.Fatal("services were listed too soon")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoopWaitsForInterval(t *testing.T) {
	clock, listed, stop := startLoop(t, 5, nil)
	defer stop()

	expectListing(t, listed)
	clock.BlockUntil(1)
	clock.Advance(5*time.Second - time.Millisecond)
	expectNoListing(t, listed)
	clock.Advance(time.Millisecond)
	expectListing(t, listed)
}

func TestLoopRearmsAfterFailedTick(t *testing.T) {
	clock, listed, stop := startLoop(t, 30, errors.New("Cannot connect to the Docker daemon"))
	defer stop()

	for i := 0; i < 3; i++ {
		expectListing(t, listed)
		clock.BlockUntil(1)
		clock.Advance(30 * time.Second)
	}
}

func TestLoopStops(t *testing.T) {
	_, listed, stop := startLoop(t, 30, nil)
	expectListing(t, listed)

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		t.Fatal("loop did not stop")
	}
}

func TestLoopStopsDuringTick(t *testing.T) {
	d, runner := mockDaemon(t, testConfig())
	d.Clock = clockwork.NewFakeClock()

	listing := make(chan struct{})
	runner.RunFunc = func(ctx context.Context, cmd run.Cmd) (run.Output, error) {
		if cmd.String() == listCmd {
			close(listing)
		}
		<-ctx.Done()
		return run.Output{}, ctx.Err()
	}

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go d.Loop(stop, wg, log.NewNopLogger())

	select {
	case <-listing:
	case <-time.After(timeout):
		t.Fatal("services were not listed")
	}
	close(stop)

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		t.Fatal("loop did not stop while listing services")
	}
}

// capture keeps every log entry's "msg".
type capture struct {
	mu   sync.Mutex
	msgs []string
}

func (c *capture) Log(keyvals ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == "msg" {
			c.msgs = append(c.msgs, fmt.Sprint(keyvals[i+1]))
		}
	}
	return nil
}

func (c *capture) has(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func TestLoopCollectsUpdates(t *testing.T) {
	d, runner := mockDaemon(t, testConfig())
	d.Clock = clockwork.NewFakeClock()
	webAndDB(t, runner)
	runner.Respond("pull app:1", downloaded("app:1"), nil)

	logger := &capture{}
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go d.Loop(stop, wg, logger)
	defer func() {
		close(stop)
		wg.Wait()
	}()

	require.Eventually(t, func() bool {
		return logger.has("service updated to newer image")
	}, timeout, 10*time.Millisecond)
	require.Len(t, runner.CallsWithPrefix("service update "), 1)
}
