package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/printrelay/printrelay/internal/api"
	"github.com/printrelay/printrelay/internal/config"
	"github.com/printrelay/printrelay/internal/dispatch"
	"github.com/printrelay/printrelay/internal/escpos"
	"github.com/printrelay/printrelay/internal/history"
	"github.com/printrelay/printrelay/internal/ingress"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/printer"
	"github.com/printrelay/printrelay/internal/queue"
	"github.com/printrelay/printrelay/internal/retry"
	"github.com/printrelay/printrelay/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// transportPinger adapts the printer transport to the readiness probe.
type transportPinger struct {
	t *printer.Transport
}

func (p transportPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.t.Ping(ctx)
}

func main() {
	configPath := flag.String("config", "printrelay.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("printrelay", "info", "console")
		logger.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init("printrelay", cfg.Logging.Level, cfg.Logging.Format)
	logger.Logger.Info().Str("config", *configPath).Msg("Starting printrelay")

	hub := ws.NewHub()
	go hub.Run()

	sinks := []dispatch.Sink{hub}

	var journal *history.Store
	if cfg.History.Enabled {
		db, err := history.Connect(cfg.History.DSN)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to history database")
		}
		defer db.Close()

		if err := history.RunMigrations(db, cfg.History.MigrationsDir); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
		}

		journal = history.NewStore(db)
		sinks = append(sinks, journal)
	}

	q := queue.New()
	policy := retry.NewPolicy(cfg.Queue.MaxAttempts, cfg.Queue.BackoffBase, cfg.Queue.BackoffCap, time.Now().UnixNano())
	encoder := escpos.New(cfg.Receipt.Width, cfg.Receipt.Header, cfg.Receipt.Footer)
	transport := printer.NewTransport(cfg.Printer.Address, cfg.Printer.DialTimeout)

	dispatcher := dispatch.New(q, encoder, transport, policy, cfg.Printer.SendTimeout, sinks...)
	dispatcher.Start()

	intake := ingress.NewIntake(q)

	wsClient := ingress.NewWebsocketClient(cfg.Backend.URL, intake)
	wsClient.Start()

	var natsConsumer *ingress.NATSConsumer
	if cfg.NATS.Enabled {
		natsConsumer, err = ingress.NewNATSConsumer(cfg.NATS.URL, cfg.NATS.Subject, intake)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create NATS consumer")
		}
		if err := natsConsumer.Subscribe(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to NATS")
		}
	}

	ready := []api.Pinger{transportPinger{transport}}
	if journal != nil {
		ready = append(ready, journal)
	}

	server := api.NewServer(q, dispatcher, hub, cfg.Server.Port, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, ready...)
	go func() {
		if err := server.Start(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")

	wsClient.Stop()
	if natsConsumer != nil {
		natsConsumer.Close()
	}

	// The dispatcher drains an attempt already on the wire before exiting.
	dispatcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	hub.Stop()
	if journal != nil {
		journal.Stop()
	}
	transport.Close()

	logger.Logger.Info().Int("pending", q.Depth()).Msg("printrelay stopped")
}
