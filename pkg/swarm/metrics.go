package swarm

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	srmetrics "github.com/fluxcd/servicereload/pkg/metrics"
)

var (
	// Pulls dominate; most other commands return in well under a second.
	commandDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "servicereload",
		Subsystem: "swarm",
		Name:      "command_duration_seconds",
		Help:      "Duration of orchestrator CLI invocations, in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{srmetrics.LabelCommand, srmetrics.LabelSuccess})
)
