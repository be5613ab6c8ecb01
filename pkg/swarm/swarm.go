package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"

	srmetrics "github.com/fluxcd/servicereload/pkg/metrics"
	"github.com/fluxcd/servicereload/pkg/run"
)

// Swarm drives a Docker Swarm through the docker command line tool.
// Each method is a single invocation (or, for Login, the one-off
// bootstrap) and is safe to call concurrently.
type Swarm struct {
	runner           run.Runner
	logger           log.Logger
	classifier       PullClassifier
	limiters         *RateLimiters
	withRegistryAuth bool
}

type Options struct {
	// Classifier decides what a pull response means; nil means
	// DockerPullClassifier.
	Classifier PullClassifier
	// Limiters, if not nil, rate limits pulls per registry host.
	Limiters *RateLimiters
	// WithRegistryAuth sends registry credentials along with service
	// updates, so that nodes can pull private images.
	WithRegistryAuth bool
}

func NewSwarm(runner run.Runner, logger log.Logger, opts Options) *Swarm {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = DockerPullClassifier
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Swarm{
		runner:           runner,
		logger:           logger,
		classifier:       classifier,
		limiters:         opts.Limiters,
		withRegistryAuth: opts.WithRegistryAuth,
	}
}

func (c *Swarm) exec(ctx context.Context, name string, cmd run.Cmd) (run.Output, error) {
	start := time.Now()
	out, err := c.runner.Run(ctx, cmd)
	commandDuration.With(
		srmetrics.LabelCommand, name,
		srmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(start).Seconds())
	return out, err
}
