package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinboard/internal/binance"
	"coinboard/internal/board"
	"coinboard/internal/coingecko"
	"coinboard/internal/config"
	"coinboard/internal/httpapi"
	"coinboard/internal/quote"
	"coinboard/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/coinboard.yaml"
	if p := os.Getenv("COINBOARD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Upstream clients.
	bn := binance.NewClient(cfg.Sources.BinanceBaseURL, cfg.SourceTimeout())
	cg := coingecko.NewClient(cfg.Sources.CoinGeckoBaseURL, cfg.SourceTimeout(), util.NewRateLimiter(cfg.Sources.CoinGeckoRatePerMin))

	adapter := quote.NewAdapter(bn, cg, cfg.Pinned.TickerSymbol, cfg.Pinned.AssetID, cfg.Pinned.PairLabel, logger)

	model := board.NewModel()
	agg := board.NewAggregator(cg, adapter, model, board.PinnedSpec{
		AssetID:     cfg.Pinned.AssetID,
		PairLabel:   cfg.Pinned.PairLabel,
		DisplayName: cfg.Pinned.DisplayName,
	}, cfg.Board.ListingPage, cfg.Board.ListingPageSize, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// First refresh in the background so the listener comes up immediately;
	// the board reports loading until it lands. Retried because the public
	// APIs throttle cold starts now and then.
	go func() {
		rctx, rcancel := context.WithTimeout(ctx, 2*time.Minute)
		defer rcancel()
		err := util.Retry(rctx, 3, 5*time.Second, func() error {
			_, err := agg.Refresh(rctx)
			return err
		})
		if err != nil {
			logger.Warn("initial refresh failed", "error", err)
		}
	}()

	// Periodic refresh, when configured.
	if cfg.Board.RefreshIntervalSec > 0 {
		interval := time.Duration(cfg.Board.RefreshIntervalSec) * time.Second
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
					if _, err := agg.Refresh(rctx); err != nil {
						logger.Warn("periodic refresh failed", "error", err)
					}
					rcancel()
				}
			}
		}()
	}

	srv := httpapi.NewBoardServer(model, agg, cg, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("coinboard server listening", "addr", httpServer.Addr, "pinned", cfg.Pinned.AssetID)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down coinboard server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
