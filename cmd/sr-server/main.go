package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sensorroom/internal/server"
	"sensorroom/internal/shared"
)

func main() {
	configPath := flag.String("config", "", "path to sensorroom.yaml (optional)")
	flag.Parse()

	cfg, err := shared.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sr-server: %v\n", err)
		os.Exit(2)
	}

	log := server.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("sr-server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *shared.ServerConfig, log *slog.Logger) error {
	var store server.Store
	if cfg.DatabasePath == shared.MemoryDatabase {
		mem := server.NewMemoryStore()
		if _, err := server.SeedMemoryStore(mem, cfg.SeedDataPath, log); err != nil {
			return err
		}
		store = mem
		log.Info("using in-memory store")
	} else {
		db, err := server.OpenDB(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := server.SeedFromJSON(context.Background(), db, cfg.SeedDataPath, log); err != nil {
			return err
		}
		store = server.NewSQLiteStore(db)
		log.Info("database ready", "path", cfg.DatabasePath)
	}

	opts := server.RouterOptions{
		Store:              store,
		Gate:               server.Gate{Token: cfg.APIToken},
		Log:                log,
		HealthRequiresAuth: cfg.HealthRequiresAuth,
	}
	if cfg.MetricsEnabled {
		opts.Metrics = server.NewMetrics(store)
	}
	srv := server.NewServer(cfg.Port, log, server.NewRouter(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
