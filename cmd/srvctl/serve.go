package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/srvctl"
	"github.com/loykin/srvctl/internal/logger"
)

// Serve runs the daemon until SIGINT or SIGTERM.
func (c *command) Serve(f ServeFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, f)
}

func (c *command) serve(ctx context.Context, f ServeFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if f.Listen != "" {
		cfg.Server.Listen = f.Listen
	}
	if f.BasePath != "" {
		cfg.Server.BasePath = f.BasePath
	}
	log, err := logger.New(cfg.Log, c.errOut)
	if err != nil {
		return err
	}

	sup, err := srvctl.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = sup.Close() }()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		if err := srvctl.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsSrv = srvctl.NewMetricsServer(cfg.Metrics.Listen, log)
		log.Info("metrics endpoint enabled", "listen", cfg.Metrics.Listen)
	}

	if !f.NoBoot {
		for _, r := range srvctl.Failed(sup.Boot(ctx)) {
			log.Warn("auto-start failed", "name", r.Name, "error", r.Err)
		}
	}

	go sup.Reconciler().Run(ctx)

	api := sup.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath)
	log.Info("srvctl daemon started", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath)

	<-ctx.Done()
	log.Info("shutting down; managed servers keep running")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}
