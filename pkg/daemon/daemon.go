package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"

	"github.com/fluxcd/servicereload/pkg/config"
	srerr "github.com/fluxcd/servicereload/pkg/errors"
	"github.com/fluxcd/servicereload/pkg/swarm"
)

// Cluster is what the daemon needs from the orchestrator. It is
// implemented by *swarm.Swarm.
type Cluster interface {
	Login(ctx context.Context, registry, user, password string) error
	ListServices(ctx context.Context) ([]swarm.ServiceRef, error)
	Inspect(ctx context.Context, name string) (swarm.ServiceInfo, error)
	PullIfNewer(ctx context.Context, image string) (bool, error)
	ForceUpdate(ctx context.Context, service swarm.ServiceInfo) error
	PruneContainers(ctx context.Context) error
	PruneImages(ctx context.Context) error
}

var _ Cluster = &swarm.Swarm{}

// Daemon watches the services in a cluster and redeploys those that
// have opted in whenever a newer image for them turns up. A Daemon is
// only ever obtained from Bootstrap, so it is always logged in to the
// registry before it starts watching.
type Daemon struct {
	Cluster Cluster
	Config  config.Config
	Clock   clockwork.Clock

	// per-service updates in progress, from this tick or an earlier one
	inflight inflight
	// per-service updates report here when they are done
	done chan updateResult
	// prune operations don't run concurrently in the docker daemon
	cleanupMu sync.Mutex
}

// Bootstrap logs in to the configured registry and, only if that
// succeeds, returns a Daemon ready to Loop. Any error it returns is
// fatal (see errors.IsFatal).
func Bootstrap(ctx context.Context, cluster Cluster, cfg config.Config, logger log.Logger) (*Daemon, error) {
	if err := cluster.Login(ctx, cfg.Registry, cfg.RegistryUser, cfg.RegistryPassword); err != nil {
		if !srerr.Is(err, srerr.Auth) {
			err = srerr.AuthError(err)
		}
		return nil, err
	}
	logger.Log("msg", "ready to watch services", "label", swarm.WatchLabel, "interval", cfg.Interval())
	return &Daemon{
		Cluster: cluster,
		Config:  cfg,
		Clock:   clockwork.NewRealClock(),
		done:    make(chan updateResult),
	}, nil
}

type updateResult struct {
	service  swarm.ServiceInfo
	updated  bool
	err      error
	duration time.Duration
}

type inflight struct {
	mu       sync.Mutex
	services map[string]struct{}
}

// acquire marks the service as being updated, unless it already is.
func (f *inflight) acquire(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.services == nil {
		f.services = map[string]struct{}{}
	}
	if _, ok := f.services[name]; ok {
		return false
	}
	f.services[name] = struct{}{}
	return true
}

func (f *inflight) release(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.services, name)
}

func (f *inflight) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.services)
}
