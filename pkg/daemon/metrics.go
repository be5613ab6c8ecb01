package daemon

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	srmetrics "github.com/fluxcd/servicereload/pkg/metrics"
)

var (
	// A tick is a listing plus one inspection per service, so mostly
	// well under a second; the updates themselves are timed separately.
	tickDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "servicereload",
		Subsystem: "daemon",
		Name:      "tick_duration_seconds",
		Help:      "Duration of listing and inspecting services, in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{srmetrics.LabelSuccess})

	servicesWatched = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "servicereload",
		Subsystem: "daemon",
		Name:      "services_watched",
		Help:      "Number of services opted in to automatic updates at the last tick.",
	}, []string{})

	// Dominated by the image pull.
	updateDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "servicereload",
		Subsystem: "daemon",
		Name:      "update_duration_seconds",
		Help:      "Duration of checking, updating and cleaning up after a service, in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{srmetrics.LabelSuccess})

	updatesTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "servicereload",
		Subsystem: "daemon",
		Name:      "updates_total",
		Help:      "Number of services redeployed because a newer image was pulled.",
	}, []string{srmetrics.LabelSuccess})
)
