package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/servicereload/pkg/config"
	"github.com/fluxcd/servicereload/pkg/daemon"
	srerr "github.com/fluxcd/servicereload/pkg/errors"
	"github.com/fluxcd/servicereload/pkg/run"
	"github.com/fluxcd/servicereload/pkg/swarm"
)

var version = "unversioned"

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  servicereload redeploys Docker Swarm services when newer images are pushed.\n")
		fmt.Fprintf(os.Stderr, "  Services opt in with the label %s=true.\n", swarm.WatchLabel)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fmt.Fprintf(os.Stderr, "  Every flag can also be given as an environment variable, e.g., --prune-images as PRUNE_IMAGES.\n")
		fs.PrintDefaults()
	}
	v := viper.New()
	defineConfigFlags(fs, v, func(err error) {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	})
	versionFlag := fs.Bool("version", false, "get version number")

	err := fs.Parse(os.Args[1:])
	switch {
	case err == pflag.ErrHelp:
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "error: %s\n\nRun 'servicereload --help' for usage.\n", err.Error())
		os.Exit(2)
	}
	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}

	// Logger component.
	var logger log.Logger
	{
		switch cfg.LogFormat {
		case config.LogFormatJSON:
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		default:
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		}
		allow := level.AllowInfo()
		if cfg.Verbose {
			allow = level.AllowDebug()
		}
		logger = level.NewFilter(logger, allow)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	logger.Log("version", version)
	logger.Log(append([]interface{}{"msg", "starting servicereload"}, cfg.Keyvals()...)...)

	// Mechanical stuff.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	errc := make(chan error, 1)

	// The commands in flight are not waited for; whatever the
	// orchestrator was asked to do, it will carry on with or drop.
	exitOnSignal := func(sig os.Signal) {
		logger.Log("signal", sig, "msg", "shutting down")
		os.Exit(0)
	}

	if cfg.ListenMetrics != "" {
		go func() {
			logger := log.With(logger, "component", "metrics")
			router := mux.NewRouter()
			router.Handle("/metrics", promhttp.Handler())
			logger.Log("addr", cfg.ListenMetrics)
			errc <- http.ListenAndServe(cfg.ListenMetrics, router)
		}()
	}

	// Cluster component.
	var cluster *swarm.Swarm
	{
		logger := log.With(logger, "component", "swarm")
		runner := &run.Exec{
			Binary:  cfg.Docker,
			Timeout: cfg.CommandTimeout,
			Logger:  logger,
		}
		cluster = swarm.NewSwarm(runner, logger, swarm.Options{
			Limiters: &swarm.RateLimiters{
				RPS:    cfg.RegistryRPS,
				Burst:  cfg.RegistryBurst,
				Logger: logger,
			},
			WithRegistryAuth: cfg.HasRegistryCredentials(),
		})
	}

	// Daemon component. Logging in has to succeed before anything is
	// watched.
	var d *daemon.Daemon
	{
		logger := log.With(logger, "component", "daemon")
		type bootstrapped struct {
			d   *daemon.Daemon
			err error
		}
		bootc := make(chan bootstrapped, 1)
		go func() {
			d, err := daemon.Bootstrap(context.Background(), cluster, cfg, logger)
			bootc <- bootstrapped{d, err}
		}()
		select {
		case b := <-bootc:
			if srerr.IsFatal(b.err) {
				logger.Log("msg", "fatal error", "err", b.err)
				os.Exit(1)
			}
			d = b.d
		case sig := <-sigc:
			exitOnSignal(sig)
		case err := <-errc:
			logger.Log("msg", "fatal error", "err", err)
			os.Exit(1)
		}
	}

	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}
	shutdownWg.Add(1)
	go d.Loop(shutdown, shutdownWg, log.With(logger, "component", "daemon"))

	// Go!
	select {
	case sig := <-sigc:
		exitOnSignal(sig)
	case err := <-errc:
		logger.Log("msg", "fatal error", "err", err)
		os.Exit(1)
	}
}
