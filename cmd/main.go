package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"room-relay/moderation"
	"room-relay/observability"
	"room-relay/projection"
	"room-relay/repositories"
	"room-relay/runtime"
	"room-relay/runtime/workers"
	"room-relay/sink"
	"room-relay/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanups always execute.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Core components
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)
	timeline := projection.NewTimeline(config.TimelineLimit)
	repository := repositories.NewRoomRepository(config.DataFilepath, log)

	broker := runtime.NewBroker(
		log, workers.NewSupervisor(log), registry, repository, monitor,
		config.BufferSize, config.SinkTimeout,
	)
	broker.Add(timeline)

	// 3. Optional message archive (BadgerDB)
	if config.BadgerFilepath != nil {
		db, err := badger.Open(badger.DefaultOptions(*config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		broker.Add(sink.NewArchiveSink(repositories.NewMessageArchive(db, log), log))
	}

	// 4. Optional moderation
	if config.CensoredFilepath != nil {
		words, err := moderation.LoadWords(*config.CensoredFilepath)
		if err != nil {
			return fmt.Errorf("loading censored words failed: %w", err)
		}
		moderator, err := moderation.NewModerator(words, config.CensoredMask)
		if err != nil {
			return fmt.Errorf("building moderator failed: %w", err)
		}
		broker.WithCensor(moderator.Censor)
		log.Info("Moderation enabled", "words", len(words))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the engine
	if err := broker.Start(ctx); err != nil {
		return fmt.Errorf("broker failed to start: %w", err)
	}

	// 7. HTTP surface: REST API plus the WebSocket gate on one router
	router := transport.NewAPI(log, broker, monitor, timeline).Router()
	transport.NewGate(log, broker, registry, monitor, config.SessionBufferSize).Register(router)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	broker.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
