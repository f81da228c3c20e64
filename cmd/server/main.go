package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cyoa/internal/config"
	"cyoa/internal/engine"
	"cyoa/internal/game"
	"cyoa/internal/logger"
	"cyoa/internal/metrics"
	"cyoa/internal/session"
	"cyoa/internal/web"
)

func main() {
	configPath := flag.String("config", "cyoa.toml", "path to the TOML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Encoding:   cfg.Logging.Encoding,
		OutputPath: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := game.LoadDocument(cfg.Game.Path)
	if err != nil {
		lg.Fatal("Failed to load game", zap.String("path", cfg.Game.Path), zap.Error(err))
	}

	saves, closeSaves, err := session.Open(ctx, cfg.Storage.Type, cfg.Storage.Path, cfg.Storage.URL, cfg.Storage.TTL.Duration())
	if err != nil {
		lg.Fatal("Failed to open save storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}
	defer func() {
		if err := closeSaves(); err != nil {
			lg.Warn("Failed to close save storage", zap.Error(err))
		}
	}()

	tmpl, err := web.ParseTemplates()
	if err != nil {
		lg.Fatal("Failed to parse templates", zap.Error(err))
	}

	players := session.NewMemoryStore[*engine.Engine]()
	players.TTL = cfg.Server.PlayerTTL.Duration()

	srv := &web.Server{
		Doc:               doc,
		Saves:             saves,
		Players:           players,
		AssetsDir:         cfg.Game.Assets,
		GameID:            cfg.Game.ID,
		Preview:           cfg.Game.Preview,
		TransitionTimeout: cfg.Transition.Timeout.Duration(),
		Logger:            lg,
		Tmpl:              tmpl,
	}
	if cfg.Server.Metrics {
		srv.Metrics = metrics.New(cfg.Game.ID)
		srv.Metrics.Registry().MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	players.OnEvict = func(id string, _ *engine.Engine) {
		lg.Debug("Player evicted", zap.String("player", id))
		if srv.Metrics != nil {
			srv.Metrics.PlayerLeft()
		}
	}
	if players.TTL > 0 {
		go players.SweepEvery(ctx, players.TTL/4)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	lg.Info("Server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("game", doc.Title),
		zap.String("storage", cfg.Storage.Type),
		zap.Bool("preview", cfg.Game.Preview),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("Server failed", zap.Error(err))
	}
	lg.Info("Server stopped")
}
