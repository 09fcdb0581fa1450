// Package config reads the optional TOML file of the chord command.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/JWilliamson45/chord/logging"
	"github.com/pkg/errors"
)

type Config struct {
	// KeyFile is read when no mongo source is configured. Empty disables
	// initial population.
	KeyFile string `toml:"key_file"`
	// Settle bounds how long a command waits for the ring to go quiet.
	Settle   time.Duration  `toml:"settle"`
	Log      logging.Config `toml:"log"`
	Metrics  Metrics        `toml:"metrics"`
	Commands Commands       `toml:"commands"`
	Mongo    Mongo          `toml:"mongo"`
}

// Metrics serves prometheus metrics when Addr is set.
type Metrics struct {
	Addr string `toml:"addr"`
	Path string `toml:"path"`
}

// Commands throttles submissions. A zero Rate means unlimited.
type Commands struct {
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

func (mongo Mongo) Enabled() bool {
	return mongo.URI != ""
}

func Default() Config {
	return Config{
		KeyFile: "key.dat",
		Settle:  5 * time.Second,
		Log: logging.Config{
			Level:       "info",
			OutputPaths: []string{"stderr"},
		},
		Metrics: Metrics{
			Path: "/metrics",
		},
		Commands: Commands{
			Burst: 1,
		},
		Mongo: Mongo{
			Database:   "chord",
			Collection: "keys",
		},
	}
}

// Load decodes path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decode config %s", path)
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.Settle <= 0 {
		return errors.New("settle must be positive")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Commands.Rate < 0 {
		return errors.New("commands.rate must not be negative")
	}
	if cfg.Commands.Rate > 0 && cfg.Commands.Burst < 1 {
		return errors.New("commands.burst must be at least 1 when rate is set")
	}
	if cfg.Metrics.Addr != "" && cfg.Metrics.Path == "" {
		return errors.New("metrics.path must be set with metrics.addr")
	}
	if cfg.Mongo.Enabled() && (cfg.Mongo.Database == "" || cfg.Mongo.Collection == "") {
		return errors.New("mongo.database and mongo.collection must be set with mongo.uri")
	}
	return nil
}
