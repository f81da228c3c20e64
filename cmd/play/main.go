package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cyoa/internal/config"
	"cyoa/internal/engine"
	"cyoa/internal/game"
	"cyoa/internal/logger"
	"cyoa/internal/session"
	"cyoa/internal/tui"
)

func main() {
	configPath := flag.String("config", "cyoa.toml", "path to the TOML config file")
	gamePath := flag.String("game", "", "game document to play (overrides the config)")
	player := flag.String("player", "local", "save slot owner")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: could not load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *gamePath != "" {
		cfg.Game.Path = *gamePath
	}

	// The terminal belongs to the game, so only file logging is allowed.
	lg := zap.NewNop()
	if out := cfg.Logging.Output; out != "" && out != "stdout" && out != "stderr" {
		if lg, err = logger.New(logger.Config{Level: cfg.Logging.Level, Encoding: cfg.Logging.Encoding, OutputPath: out}); err != nil {
			fmt.Printf("Error building logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := game.LoadDocument(cfg.Game.Path)
	if err != nil {
		fmt.Printf("Error loading game %s: %v\n", cfg.Game.Path, err)
		os.Exit(1)
	}

	saves, closeSaves, err := session.Open(ctx, cfg.Storage.Type, cfg.Storage.Path, cfg.Storage.URL, cfg.Storage.TTL.Duration())
	if err != nil {
		fmt.Printf("Error opening save storage: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeSaves() }()

	e, err := engine.New(doc, engine.Options{
		Store:             saves,
		Key:               engine.DefaultSaveKey + ":" + cfg.Game.ID + ":" + *player,
		Preview:           cfg.Game.Preview,
		TransitionTimeout: cfg.Transition.Timeout.Duration(),
		Sound:             tui.SoundLog{Logger: lg},
		Logger:            lg,
	})
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(ctx, e, tui.DefaultAnimation); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
