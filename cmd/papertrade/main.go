package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/handler"
	"github.com/efreitasn/papertrade/internal/quote"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	accountStore := store.NewAccountStore()
	ledgerStore := store.NewLedgerStore()
	orderStore := store.NewOrderStore()
	fillStore := store.NewFillStore()
	webhookStore := store.NewWebhookStore()

	// Domain.
	instruments := domain.NewInstrumentRegistry()
	quotes := quote.NewCache()

	// Engine.
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, ledgerStore, orderStore, fillStore, instruments, quotes, logger, engine.Config{
		LockTimeout:       cfg.LockTimeout,
		LedgerRetries:     cfg.LedgerRetries,
		SlippageBufferBps: cfg.SlippageBufferBps,
	})

	// Services.
	defaultCash, err := domain.DollarsToCents(cfg.DefaultInitialCash)
	if err != nil {
		logger.Error("invalid DEFAULT_INITIAL_CASH", slog.String("error", err.Error()))
		os.Exit(1)
	}
	webhookSvc := service.NewWebhookService(webhookStore, accountStore, cfg.WebhookTimeout)
	accountSvc := service.NewAccountService(accountStore, ledgerStore, defaultCash)
	orderSvc := service.NewOrderService(matcher, accountStore, orderStore, instruments, webhookSvc)
	portfolioSvc := service.NewPortfolioService(ledgerStore, quotes)
	marketSvc := service.NewMarketService(instruments, quotes, matcher)

	// Router.
	router := handler.NewRouter(accountSvc, orderSvc, portfolioSvc, marketSvc, webhookSvc, logger)

	// Start the quote feed client if configured.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.FeedURL != "" {
		feedClient := feed.NewClient(cfg.FeedURL, quotes, logger, cfg.FeedReconnectWait)
		go feedClient.Run(ctx)
	}

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops the
	// feed client).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
