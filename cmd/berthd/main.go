package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/berth-deploy/berth/pkg/builder"
	dockerbuilder "github.com/berth-deploy/berth/pkg/builder/docker"
	"github.com/berth-deploy/berth/pkg/cleanup"
	"github.com/berth-deploy/berth/pkg/config"
	"github.com/berth-deploy/berth/pkg/container"
	"github.com/berth-deploy/berth/pkg/daemon"
	"github.com/berth-deploy/berth/pkg/deploy"
	httpdaemon "github.com/berth-deploy/berth/pkg/http/daemon"
	"github.com/berth-deploy/berth/pkg/job"
	"github.com/berth-deploy/berth/pkg/provider"
	gitprovider "github.com/berth-deploy/berth/pkg/provider/git"
	"github.com/berth-deploy/berth/pkg/routing"
	"github.com/berth-deploy/berth/pkg/rules"
	"github.com/berth-deploy/berth/pkg/store"
)

var version = "unversioned"

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  berthd is a deployment daemon.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	var (
		versionFlag     = fs.Bool("version", false, "get version number")
		configFile      = fs.String("config", "", "path to a berth config file with projects, services, rules and repos")
		listenAddr      = fs.StringP("listen", "l", ":3040", "listen address for berth API clients")
		listenMetrics   = fs.String("listen-metrics", "", "listen address for /metrics endpoint; omit to serve metrics on the API listener")
		logFormat       = fs.String("log-format", "fmt", `change the log format; can be "fmt" or "json"`)
		routingDir      = fs.String("routing-dir", "", "directory rendered reverse-proxy configuration files are written to")
		dockerNetwork   = fs.String("docker-network", "", "docker network deployed containers are attached to")
		buildTimeout    = fs.Duration("build-timeout", deploy.DefaultBuildTimeout, "maximum duration of the build step, unless a service overrides it")
		cleanupInterval = fs.Duration("cleanup-interval", time.Hour, "period with which retention runs for services with automatic cleanup enabled")
		sweepInterval   = fs.Duration("sweep-interval", 5*time.Minute, "period with which stalled in-flight deployments are looked for")
		staleThreshold  = fs.Duration("stale-threshold", 30*time.Minute, "age a deployment's phase may reach without advancing before it is failed")
	)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err != pflag.ErrHelp {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		os.Exit(2)
	}
	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	// Config file layered under flags: file values apply only where
	// the flag was left at its default.
	cfg := config.Defaults()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
	}
	if fs.Changed("listen") || cfg.Listen == "" {
		cfg.Listen = *listenAddr
	}
	if fs.Changed("listen-metrics") {
		cfg.ListenMetrics = *listenMetrics
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = *logFormat
	}
	if fs.Changed("routing-dir") {
		cfg.RoutingDir = *routingDir
	}
	if fs.Changed("build-timeout") {
		cfg.BuildTimeout.Duration = *buildTimeout
	}
	if fs.Changed("cleanup-interval") {
		cfg.CleanupInterval.Duration = *cleanupInterval
	}
	if fs.Changed("sweep-interval") {
		cfg.SweepInterval.Duration = *sweepInterval
	}
	if fs.Changed("stale-threshold") {
		cfg.StaleThreshold.Duration = *staleThreshold
	}

	// Logger component.
	var logger log.Logger
	{
		switch cfg.LogFormat {
		case "json":
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		case "fmt":
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		default:
			fmt.Fprintf(os.Stderr, "log format %q not understood\n", cfg.LogFormat)
			os.Exit(2)
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	logger.Log("version", version)

	// Store component.
	mem := store.NewMem()
	if err := cfg.Seed(context.Background(), mem); err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	logger.Log("services", len(cfg.Services), "rules", len(cfg.Rules), "repos", len(cfg.Repos))

	// Source providers.
	providers := provider.NewRegistry()
	{
		logger := log.With(logger, "component", "provider")
		providers.Register(gitprovider.Name, gitprovider.New(logger))
	}

	// Build strategies. The container strategy also backs the
	// degraded fallback for unregistered strategies.
	builders := builder.NewRegistry()
	runtime := container.NewDockerRuntime(log.With(logger, "component", "container"))
	{
		logger := log.With(logger, "component", "builder")
		docker := dockerbuilder.New(logger)
		docker.Network = *dockerNetwork
		builders.Register(builder.StrategyContainer, docker)
		builders.Register(builder.StrategyDockerfile, docker)
	}

	// Routing component.
	var router *routing.Reconciler
	if cfg.RoutingDir != "" {
		logger := log.With(logger, "component", "routing")
		router = routing.NewReconciler(mem, &routing.FileConfigWriter{Root: cfg.RoutingDir}, logger)
	}

	// Orchestrator component.
	var orchestrator *deploy.Orchestrator
	{
		logger := log.With(logger, "component", "orchestrator")
		orchestrator = deploy.NewOrchestrator(providers, builders, runtime, logger)
		orchestrator.Recorder = mem
		orchestrator.BuildTimeout = cfg.BuildTimeout.Duration
		if router != nil {
			orchestrator.Router = router
		}
	}

	// Daemon component: job queue, rule matching, loop.
	var d *daemon.Daemon
	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}
	{
		logger := log.With(logger, "component", "daemon")
		d = &daemon.Daemon{
			Store:         mem,
			Matcher:       rules.NewMatcher(mem, rules.NewConditionRegistry(), logger),
			Orchestrator:  orchestrator,
			Cleaner:       cleanup.NewCleaner(mem, runtime, log.With(logger, "component", "cleanup")),
			Jobs:          job.NewQueue(shutdown, shutdownWg),
			Logger:        logger,
			VersionString: version,
			LoopVars: daemon.LoopVars{
				CleanupInterval: cfg.CleanupInterval.Duration,
				SweepInterval:   cfg.SweepInterval.Duration,
				StaleThreshold:  cfg.StaleThreshold.Duration,
			},
		}
		shutdownWg.Add(1)
		go d.Loop(shutdown, shutdownWg, logger)
	}

	// Error and signal handling.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// HTTP transport component, plus metrics.
	{
		mux := http.NewServeMux()
		if cfg.ListenMetrics == "" {
			mux.Handle("/metrics", promhttp.Handler())
		}
		handler := httpdaemon.NewHandler(d, httpdaemon.NewRouter())
		mux.Handle("/", handler)
		logger.Log("addr", cfg.Listen)
		go func() {
			errc <- http.ListenAndServe(cfg.Listen, mux)
		}()

		if cfg.ListenMetrics != "" {
			go func() {
				metricsMux := http.NewServeMux()
				metricsMux.Handle("/metrics", promhttp.Handler())
				logger.Log("metrics-addr", cfg.ListenMetrics)
				errc <- http.ListenAndServe(cfg.ListenMetrics, metricsMux)
			}()
		}
	}

	// Fall off the end, log, wait for shutdown.
	logger.Log("exiting", <-errc)
	close(shutdown)
	shutdownWg.Wait()
}
