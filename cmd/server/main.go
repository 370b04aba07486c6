package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yangwenmai/savanna/internal/api"
	"github.com/yangwenmai/savanna/internal/arweave"
	"github.com/yangwenmai/savanna/internal/config"
	"github.com/yangwenmai/savanna/internal/confirm"
	"github.com/yangwenmai/savanna/internal/gallery"
	"github.com/yangwenmai/savanna/internal/indexer"
	"github.com/yangwenmai/savanna/internal/store"
	"github.com/yangwenmai/savanna/internal/submission"
	"github.com/yangwenmai/savanna/internal/transport"
	"github.com/yangwenmai/savanna/internal/wallet"
	"github.com/yangwenmai/savanna/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg)

	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("open db", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := store.New(db)
	if err != nil {
		slog.Error("init store", "error", err)
		os.Exit(1)
	}
	tracker := store.NewTracker()

	gw := arweave.NewClient(arweave.WithBaseURL(cfg.GatewayURL), arweave.WithTimeout(cfg.HTTPTimeout))

	var proc transport.Transport
	if cfg.UseMemoryTransport() {
		slog.Info("using in-memory process", "process_id", cfg.ProcessID)
		proc = transport.NewMemoryProcess(cfg.ProcessID)
	} else {
		slog.Info("using remote process",
			"process_id", cfg.ProcessID,
			"mu", cfg.MUURL,
			"cu", cfg.CUURL,
		)
		proc = transport.NewHTTPTransport(cfg.ProcessID,
			transport.WithMU(cfg.MUURL),
			transport.WithCU(cfg.CUURL),
			transport.WithSU(cfg.SUURL),
			transport.WithGateway(gw),
			transport.WithHTTPTimeout(cfg.HTTPTimeout),
		)
	}

	var ext wallet.Extension = wallet.NewDevExtension(cfg.WalletAddress)
	if cfg.WalletKeyfile != "" {
		kf, err := wallet.LoadKeyfile(cfg.WalletKeyfile)
		if err != nil {
			slog.Error("load wallet", "error", err)
			os.Exit(1)
		}
		ext = kf
	}
	wallets := wallet.NewManager(ext)

	resolver := indexer.NewResolver(
		indexer.NewGraphQLIndexer(gw),
		indexer.NewPageIndexer(gw),
	)

	coordinator := confirm.New(proc, cache, confirm.Options{
		DirectTimeout: cfg.DirectTimeout,
		PollInterval:  cfg.PollInterval,
		PollAttempts:  cfg.PollAttempts,
		PollLimit:     cfg.PollLimit,
	}, confirm.WithObserver(tracker))

	submissions := submission.NewService(wallets, resolver, proc, cfg.ProcessID, tracker)
	galleries := gallery.NewService(proc, cache, resolver, cfg.CacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start worker in background.
	w := worker.New(tracker, coordinator, cfg.WorkerInterval, cfg.WorkerConcurrency)
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.New(api.Deps{
		Wallet:      wallets,
		Submitter:   submissions,
		Submissions: tracker,
		Gallery:     galleries,
		Health:      db,
		CORSOrigin:  cfg.CORSOrigin,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("savanna server listening", "addr", "http://localhost:"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	<-done
	slog.Info("server stopped", "pending", tracker.Pending())
}

func initLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
