package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-pos/internal/common/config"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/common/observability"
	"restaurant-pos/internal/microservices/notificator"
	"restaurant-pos/internal/microservices/pos"
)

const modes = "pos-service | notification-subscriber | seed"

func main() {
	mode := flag.String("mode", "", modes)
	cfgPath := flag.String("config", "config.yaml", "path to the YAML config file")
	port := flag.Int("port", 0, "pos-service: http port, overrides the config")
	flag.Parse()

	lg := logger.New("bootstrap")
	defer lg.Sync()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, nil)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Service.Port = *port
	}

	var run func(context.Context, config.App, *logger.Logger) error
	switch *mode {
	case "pos-service":
		run = pos.Run
	case "notification-subscriber":
		run = notificator.Start
	case "seed":
		run = pos.Seed
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		lg.Error("tracing_setup_failed", err, nil)
		os.Exit(1)
	}
	shutdownLogs, err := observability.SetupLogging(ctx, cfg.Tracing)
	if err != nil {
		lg.Error("log_export_setup_failed", err, nil)
		os.Exit(1)
	}

	svcLog := logger.New(*mode)
	svcLog.Info("service_starting", map[string]any{"mode": *mode})
	err = run(ctx, cfg, svcLog)
	svcLog.Sync()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if ferr := errors.Join(shutdownTracing(flushCtx), shutdownLogs(flushCtx)); ferr != nil {
		lg.Warn("telemetry_flush_failed", map[string]any{"error": ferr.Error()})
	}
	if err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
}
