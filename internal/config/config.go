// Package config loads host settings: built-in defaults, then an optional
// TOML file, then CYOA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"cyoa/internal/session"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CYOA_"

// Storage backends.
const (
	StorageMemory = session.BackendMemory
	StorageFile   = session.BackendFile
	StorageSQLite = session.BackendSQLite
	StorageRedis  = session.BackendRedis
)

type Config struct {
	Server     ServerConfig     `toml:"server" envPrefix:"SERVER_"`
	Game       GameConfig       `toml:"game" envPrefix:"GAME_"`
	Storage    StorageConfig    `toml:"storage" envPrefix:"STORAGE_"`
	Transition TransitionConfig `toml:"transition" envPrefix:"TRANSITION_"`
	Logging    LoggingConfig    `toml:"logging" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Addr    string `toml:"addr" env:"ADDR"`
	Metrics bool   `toml:"metrics" env:"METRICS"`
	// PlayerTTL drops a player's live engine after this much idle time.
	// Their save survives.
	PlayerTTL Duration `toml:"player_ttl" env:"PLAYER_TTL"`
}

type GameConfig struct {
	// Path is the exported game document (JSON or YAML).
	Path string `toml:"path" env:"PATH"`
	// ID namespaces saves when several games share one store.
	ID string `toml:"id" env:"ID"`
	// Preview disables saving and loading.
	Preview bool `toml:"preview" env:"PREVIEW"`
	// Assets is the directory served under /assets/. Keep the document
	// itself out of it.
	Assets string `toml:"assets" env:"ASSETS"`
}

type StorageConfig struct {
	Type string   `toml:"type" env:"TYPE"` // memory, file, sqlite, redis
	Path string   `toml:"path" env:"PATH"` // directory for file, database for sqlite
	URL  string   `toml:"url" env:"URL"`   // redis://...
	TTL  Duration `toml:"ttl" env:"TTL"`   // redis expiry, 0 keeps saves forever
}

type TransitionConfig struct {
	Timeout Duration `toml:"timeout" env:"TIMEOUT"`
}

type LoggingConfig struct {
	Level    string `toml:"level" env:"LEVEL"`
	Encoding string `toml:"encoding" env:"ENCODING"`
	Output   string `toml:"output" env:"OUTPUT"`
}

// Duration is a time.Duration written as a string such as "1.5s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", Metrics: true, PlayerTTL: Duration(2 * time.Hour)},
		Game:   GameConfig{Path: "games/demo.json", ID: "demo", Assets: "games/assets"},
		Storage: StorageConfig{
			Type: StorageMemory,
			Path: "saves",
		},
		Transition: TransitionConfig{Timeout: Duration(1500 * time.Millisecond)},
		Logging:    LoggingConfig{Level: "info", Encoding: "json"},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings no host can start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Game.Path == "" {
		errs = append(errs, errors.New("game.path is required"))
	}
	switch c.Storage.Type {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for %s storage", c.Storage.Type))
		}
	case StorageRedis:
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage.url is required for redis storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}
	if c.Server.PlayerTTL < 0 {
		errs = append(errs, errors.New("server.player_ttl must not be negative"))
	}
	if c.Storage.TTL < 0 {
		errs = append(errs, errors.New("storage.ttl must not be negative"))
	}
	if c.Transition.Timeout < 0 {
		errs = append(errs, errors.New("transition.timeout must not be negative"))
	}
	return errors.Join(errs...)
}
