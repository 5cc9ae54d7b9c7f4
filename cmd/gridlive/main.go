package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	gridcli "github.com/gridlive/gridlive/grid-cli"
	gridmetrics "github.com/gridlive/gridlive/grid-metrics"
	gridrest "github.com/gridlive/gridlive/grid-rest"
	gridstore "github.com/gridlive/gridlive/grid-store"
	gridws "github.com/gridlive/gridlive/grid-ws"
)

const shutdownTimeout = 10 * time.Second

var service = gridcli.NewService("gridlive")

func main() {
	app := gridcli.App(service, action, gridcli.CommonFlags...)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(c *cli.Context) error {
	logger := gridcli.Logger(service)
	opts := gridcli.CommonOpts

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := gridmetrics.New()
	store := gridstore.Build(gridstore.Config{
		URI:        opts.StoreURI,
		Database:   opts.StoreDatabase,
		Collection: opts.StoreCollection,
		SeedRows:   opts.SeedRows,
	}, logger)

	// Store startup failure is non-fatal: the relay degrades to broadcasting
	// without durability and retries lazily on the next write.
	if err := store.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("store unavailable, running in non-durable mode")
	}

	registry := gridws.NewRegistry()
	relay := &gridws.Relay{
		Registry:      registry,
		Store:         store,
		Logger:        logger,
		Metrics:       metrics,
		ExcludeOrigin: opts.NoEcho,
	}
	handler := &gridws.Handler{
		Relay:     relay,
		Registry:  registry,
		Logger:    logger,
		Metrics:   metrics,
		WriteWait: opts.WriteWait,
	}
	api := &gridrest.API{
		Rows:    store,
		WS:      handler,
		Metrics: metrics.Handler(),
		Logger:  logger,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: api.Router(),
	}

	// Binding the endpoint is the one fatal startup condition, so listen
	// before anything is supervised.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("binding %v: %w", srv.Addr, err)
	}
	logger.Info().Int("port", opts.Port).Bool("durable", store.Connected()).Msg("listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(ctx)
	})
	if opts.Demo {
		generator := &gridws.Generator{
			Relay:    relay,
			Logger:   logger,
			Interval: opts.DemoInterval,
			Rows:     opts.SeedRows,
			Persist:  opts.DemoPersist,
		}
		g.Go(func() error {
			return generator.Run(ctx)
		})
	}
	g.Go(func() error {
		err := srv.Serve(ln)
		// The listener is closed out from under Serve when drain begins.
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		drain(logger, srv, ln, handler, registry, store)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// drain performs the graceful shutdown sequence in order: stop accepting,
// notify and close every open connection, disconnect the store, release the
// listening endpoint. Every step is best effort; a failing connection never
// halts the rest.
func drain(logger zerolog.Logger, srv *http.Server, ln net.Listener, handler *gridws.Handler, registry *gridws.Registry, store *gridstore.Store) {
	logger.Info().Int("connections", registry.Len()).Msg("draining")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting before notifying anyone; a client arriving mid-drain
	// would otherwise be upgraded and then dropped without a close frame.
	handler.StopAccepting()
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn().Err(err).Msg("failed to close listener")
	}

	var g errgroup.Group
	g.SetLimit(50)
	registry.ForEach(func(conn *gridws.Conn) {
		g.Go(func() error {
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Str("connection_id", conn.ID()).Msg("failed to close connection")
			}
			registry.Unregister(conn)
			return nil
		})
	})
	_ = g.Wait()

	if err := store.Disconnect(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to disconnect store")
	}

	// Final release of the endpoint; websocket sessions are hijacked so the
	// close pass above, not Shutdown, is what ends them.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}
}
