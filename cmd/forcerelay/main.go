package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Flouse/forcerelay/integration/pkg/adapter"
	"github.com/Flouse/forcerelay/integration/pkg/adapter/axon"
	"github.com/Flouse/forcerelay/integration/pkg/adapter/ckb"
	"github.com/Flouse/forcerelay/pkg/config"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/Flouse/forcerelay/protocol/common/health"
	"github.com/Flouse/forcerelay/protocol/common/logging"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

const (
	healthCheckTimeout = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	//
	// Load configuration
	// ------------------------------------------------------------------------------------------------
	configPath := config.Path(os.Args[1:])
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration in %s: %v\n", configPath, err)
		os.Exit(1)
	}

	//
	// Initialize logger
	// ------------------------------------------------------------------------------------------------
	lggr, err := logger.NewWith(logging.For(cfg.GetLogLevel(), cfg.JSONLogs()))
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	lggr = logger.Sugared(logger.Named(lggr, "forcerelay"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// Build chain adapters
	// ------------------------------------------------------------------------------------------------
	registry := adapter.NewRegistry()
	if err := errors.Join(
		registry.Register(protocol.ChainFamilyAxon, axon.NewFromConfig),
		registry.Register(protocol.ChainFamilyCkb, ckb.NewFromConfig),
	); err != nil {
		lggr.Errorw("Failed to register adapters", "error", err)
		os.Exit(1)
	}

	adapters := make([]protocol.ChainAdapter, 0, len(cfg.Chains))
	checkers := make([]health.Checker, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		a, err := registry.Build(ctx, lggr, chain)
		if err != nil {
			lggr.Errorw("Failed to build adapter", "chainID", chain.ChainID, "family", chain.Family, "error", err)
			shutdown(lggr, adapters)
			os.Exit(1)
		}
		adapters = append(adapters, a)
		checkers = append(checkers, a)
	}

	hctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	for _, ch := range health.Check(hctx, checkers).Chains {
		if ch.Status != health.Ready {
			lggr.Warnw("Chain is not healthy", "chainID", ch.ChainID, "family", ch.Family, "reason", ch.Error)
			continue
		}
		lggr.Infow("Chain is healthy", "chainID", ch.ChainID, "family", ch.Family)
	}
	cancel()

	//
	// Serve metrics and health
	// ------------------------------------------------------------------------------------------------
	var srv *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.Register(mux, checkers, healthCheckTimeout)
		srv = &http.Server{Addr: cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			lggr.Infow("Serving metrics", "address", cfg.MetricsAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lggr.Errorw("Metrics server failed", "error", err)
			}
		}()
	}

	//
	// Follow events until a shutdown signal arrives
	// ------------------------------------------------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		sub, err := a.Subscribe(gctx)
		if err != nil {
			lggr.Errorw("Failed to subscribe", "chainID", a.Identity().ChainID, "error", err)
			shutdown(lggr, adapters)
			os.Exit(1)
		}
		g.Go(func() error {
			return follow(gctx, lggr, a.Identity().ChainID, sub)
		})
	}

	<-ctx.Done()
	lggr.Infow("Shutdown signal received, stopping relayer")

	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			lggr.Errorw("Metrics server shutdown error", "error", err)
		}
		scancel()
	}
	shutdown(lggr, adapters)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lggr.Errorw("Event follower stopped with error", "error", err)
	}
	lggr.Infow("Relayer stopped")
}

// follow logs every batch of sub until ctx ends or the subscription closes.
func follow(ctx context.Context, lggr logger.Logger, chainID string, sub protocol.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-sub.Events():
			if !ok {
				return nil
			}
			for _, ev := range batch.Events {
				lggr.Infow("IBC event",
					"chainID", chainID,
					"height", batch.Height.GetRevisionHeight(),
					"kind", ev.Event.Kind().String(),
					"tx", ev.TxHash.String())
			}
		}
	}
}

func shutdown(lggr logger.Logger, adapters []protocol.ChainAdapter) {
	for _, a := range adapters {
		if err := a.Shutdown(); err != nil {
			lggr.Errorw("Adapter shutdown error", "chainID", a.Identity().ChainID, "error", err)
		}
	}
}
