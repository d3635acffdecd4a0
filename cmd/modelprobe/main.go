package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"modelprobe/internal/config"
	"modelprobe/internal/metrics"
	"modelprobe/internal/models"
	"modelprobe/internal/probe"
	"modelprobe/internal/report"
	"modelprobe/internal/server"
	"modelprobe/internal/storage"
	"modelprobe/internal/sweep"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		envPath    = flag.String("env", ".env", "path to an optional .env file with endpoints and credentials")
		listen     = flag.String("listen", "", "serve the report API and live feed on this address, e.g. :8080")
	)
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("load env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()

	routes, err := cfg.RouteTable()
	if err != nil {
		log.Fatalf("build routes: %v", err)
	}

	store, err := storage.NewReportStorage(cfg.OutputDirectory)
	if err != nil {
		log.Fatalf("initialise storage: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := report.NewConsole(os.Stdout)
	collector := metrics.NewCollector()
	hub := server.NewHub()

	var srv *server.Server
	serveErr := make(chan error, 1)
	if *listen != "" {
		srv = server.New(*listen, store, hub, collector.Handler())
		ln, err := srv.Listen()
		if err != nil {
			log.Fatalf("start server: %v", err)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		log.Printf("Report server listening on %s", *listen)
	}
	shutdown := func() {
		if srv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}

	console.Banner(routes, len(cfg.Targets))
	startedAt := time.Now()

	var preflight []models.ConnectivityStatus
	if !cfg.SkipPreflight {
		preflight = sweep.Preflight(ctx, routes, 0)
		console.Preflight(preflight)
	}

	scheduler := sweep.New(routes, probe.NewExecutor(),
		sweep.WithBatchSize(cfg.BatchSize),
		sweep.WithBatchDelay(cfg.BatchDelay()),
		sweep.WithTimeout(cfg.Timeout()),
		sweep.WithObserver(console),
		sweep.WithObserver(collector),
		sweep.WithObserver(hub),
	)

	outcomes, err := scheduler.Run(ctx, cfg.Targets)
	if err != nil {
		log.Printf("sweep interrupted after %d of %d probes: %v", len(outcomes), len(cfg.Targets), err)
		shutdown()
		os.Exit(1)
	}

	sweepReport := report.Summarize(report.Meta{
		SweepID:     uuid.NewString(),
		StartedAt:   startedAt,
		GeneratedAt: time.Now(),
		Routes:      routes,
		Preflight:   preflight,
	}, outcomes)
	console.Summary(sweepReport)

	path, err := store.Save(sweepReport)
	if err != nil {
		shutdown()
		log.Fatalf("save report: %v", err)
	}
	console.Saved(path)
	hub.SweepCompleted(sweepReport)

	if srv == nil {
		return
	}

	log.Printf("Sweep finished; serving reports until interrupted")
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Fatalf("server error: %v", err)
	}
	shutdown()
}
