package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/schengenwatch/visadash/internal/api"
	"github.com/schengenwatch/visadash/internal/client"
	"github.com/schengenwatch/visadash/internal/config"
	"github.com/schengenwatch/visadash/internal/dashboard"
	"github.com/schengenwatch/visadash/internal/diag"
	"github.com/schengenwatch/visadash/internal/logging"
	"github.com/schengenwatch/visadash/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	initConfig := flag.String("init-config", "", "write the default configuration to this path and exit")
	flag.Parse()

	if *initConfig != "" {
		if err := config.Default().Save(*initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s\n", *initConfig)
		return
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, cfgErr := config.Load(paths...)
	if cfgErr != nil {
		if *configPath != "" {
			fmt.Fprintf(os.Stderr, "load config: %v\n", cfgErr)
			os.Exit(1)
		}
		cfg = config.Default()
		cfg.ConfigPath = "config.yaml"
	}

	logBuf := diag.NewLogBuffer(cfg.Logging.BufferSize)
	log, closer := logging.New(cfg.Logging, logBuf)
	defer closer.Close()

	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("could not load config file, using defaults")
	}
	log.Info().
		Str("config", cfg.ConfigPath).
		Int("port", cfg.Server.Port).
		Str("backend", cfg.BackendURL()).
		Msg("visa appointment dashboard starting")

	if err := run(cfg, log, logBuf); err != nil {
		log.Error().Err(err).Msg("dashboard stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("dashboard exiting")
}

func run(cfg *config.Config, log zerolog.Logger, logBuf *diag.LogBuffer) error {
	opts := api.Options{LogBuffer: logBuf, Logger: log}

	// an external backend needs no local database
	if cfg.Backend.BaseURL == "" {
		st, err := store.Open(cfg.Database.Path, store.Options{
			LogLimit:      cfg.Dashboard.LogLimit,
			ResponseLimit: cfg.Dashboard.ResponseLimit,
			Migrate:       cfg.Database.Migrate,
		})
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Backend = st
	}

	c := client.New(cfg.BackendURL(), cfg.Backend.Timeout)
	opts.Connection = c.Status

	view, err := dashboard.NewView(c, log, dashboard.ViewOptions{
		PageLength:      cfg.Dashboard.PageLength,
		Location:        cfg.Dashboard.Location(),
		LogPollInterval: cfg.Dashboard.LogPollInterval,
		RefreshSchedule: cfg.Dashboard.RefreshSchedule,
		Workers:         cfg.Dashboard.Workers,
		RequestTimeout:  cfg.Backend.Timeout,
	})
	if err != nil {
		return fmt.Errorf("dashboard.refresh_schedule: %w", err)
	}
	opts.View = view

	server := api.NewServer(cfg, opts)
	ln, err := net.Listen("tcp", server.Addr())
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the listener is open, so a dashboard reading this process can load
	view.Start(ctx)

	select {
	case <-ctx.Done():
		log.Info().Msg("received interrupt signal")
	case err := <-serveErr:
		view.Stop()
		return err
	}

	view.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-serveErr
}
