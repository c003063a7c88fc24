package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/frontier/internal/clients/s3"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/aristath/frontier/internal/server"
	"github.com/aristath/frontier/internal/services"
)

const (
	walCheckSchedule    = "@every 10m"
	scheduledRunTimeout = 30 * time.Minute
	shutdownGracePeriod = 10 * time.Second
)

type serveCmd struct {
	cfg *config.Config
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the simulation API" }
func (*serveCmd) Usage() string {
	return `frontier serve [-port 8001] [-returns returns.csv] [-schedule "@every 1h"]

  Starts the HTTP API and, when a schedule is set, re-runs the configured
  simulation periodically and stores every run.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.cfg.Port, "port", c.cfg.Port, "HTTP port")
	f.StringVar(&c.cfg.ReturnsFile, "returns", c.cfg.ReturnsFile, "returns CSV used by the stream and scheduled runs")
	f.StringVar(&c.cfg.Schedule, "schedule", c.cfg.Schedule, "cron schedule for stored re-runs, empty disables")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.cfg.Validate(); err != nil {
		return usageError(err)
	}
	if c.cfg.Schedule != "" {
		if err := scheduler.ValidateSchedule(c.cfg.Schedule); err != nil {
			return usageError(err)
		}
	}

	log := newLogger(c.cfg)
	log.Info().Msg("Starting frontier")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := openStore(c.cfg, log)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	var uploader services.Uploader
	if c.cfg.S3.Enabled() {
		client, err := s3.NewClient(ctx, c.cfg.S3, log)
		if err != nil {
			return fail(err)
		}
		uploader = client
	}

	simulations := services.NewSimulationService(repo, uploader, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(walCheckSchedule, scheduler.NewCheckWALCheckpointsJob(db, log)); err != nil {
		return fail(err)
	}
	if c.cfg.Schedule != "" {
		base := services.RequestFromConfig(c.cfg)
		base.Source = "schedule:" + c.cfg.ReturnsFile
		base.OutputPath = ""
		base.ChartPath = ""
		job := scheduler.NewSimulationJob(simulations, base, scheduledRunTimeout, log)
		if err := sched.AddJob(c.cfg.Schedule, job); err != nil {
			return fail(err)
		}
		if next, ok := sched.Next(job.Name()); ok {
			log.Info().Time("next", next).Msg("Scheduled simulation enabled")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:         log,
		Config:      c.cfg,
		DB:          db,
		Runs:        repo,
		Simulations: simulations,
		Port:        c.cfg.Port,
		DevMode:     c.cfg.DevMode,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fail(err)
	}

	log.Info().Msg("Server stopped")
	return subcommands.ExitSuccess
}
