package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensorroom/internal/agent"
	"sensorroom/internal/server"
)

func main() {
	configPath := flag.String("config", "./agent.json", "path to agent config json")
	logLevel := flag.String("log-level", "INFO", "DEBUG | INFO | WARN | ERROR")
	once := flag.Bool("once", false, "report a single round and exit")
	flag.Parse()

	log := server.NewLogger(os.Stderr, *logLevel, "text")
	slog.SetDefault(log)

	a, err := agent.New(*configPath, log)
	if err != nil {
		log.Error("agent setup failed", "error", err)
		os.Exit(1)
	}
	log.Info("sr-agent ready", "server", a.Cfg.ServerURL, "probes", len(a.Cfg.Probes), "interval", a.Interval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := a.ReportOnce(ctx); err != nil {
			log.Error("report failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(a.Interval())
	defer ticker.Stop()

	for {
		if err := a.ReportOnce(ctx); err != nil {
			log.Warn("report round incomplete", "error", err)
		}
		select {
		case <-ctx.Done():
			log.Info("sr-agent stopping")
			return
		case <-ticker.C:
		}
	}
}
