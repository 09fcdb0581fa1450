// Command chord runs an interactive Chord ring simulation. Every node is a
// goroutine. Nodes talk only through their mailboxes.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/JWilliamson45/chord/client"
	"github.com/JWilliamson45/chord/config"
	"github.com/JWilliamson45/chord/keysource"
	"github.com/JWilliamson45/chord/keysource/mongo"
	"github.com/JWilliamson45/chord/logging"
	"github.com/JWilliamson45/chord/node"
	"github.com/JWilliamson45/chord/record"
	"github.com/JWilliamson45/chord/richclose"
	"github.com/JWilliamson45/chord/ring"
	"github.com/JWilliamson45/chord/server/httpsrv"
	"github.com/JWilliamson45/chord/telemetry"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const closeTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path of a TOML config file")
		keyFile     = flag.String("keys", "", "key file loaded at start, overrides key_file")
		debug       = flag.Bool("debug", false, "start with debug messages enabled")
		metricsAddr = flag.String("metrics", "", "serve prometheus metrics on this address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *keyFile != "" {
		cfg.KeyFile = *keyFile
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger, debugSwitch, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	ctx := ctxzap.ToContext(context.Background(), logger)

	r, err := ring.New(ring.Option{}.
		SetLogger(logger).
		SetOutput(node.NewWriterEmitter(os.Stdout)).
		SetDebug(debugSwitch))
	if err != nil {
		return err
	}
	closers := []richclose.WithContextCloser{r}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		// reverse start order
		for i, j := 0, len(closers)-1; i < j; i, j = i+1, j-1 {
			closers[i], closers[j] = closers[j], closers[i]
		}
		if err := richclose.CloseAll(closeCtx, closers...); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	clt := client.New(r, clientOption(cfg, logger))
	if *debug {
		if _, err := clt.ToggleDebug(ctx); err != nil {
			return err
		}
	}

	source, closer, err := keySource(ctx, cfg, logger)
	if err != nil {
		logger.Warn("key source unavailable, starting with no keys", zap.Error(err))
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	if source != nil {
		if err := populate(ctx, clt, source, logger); err != nil {
			logger.Warn("initial keys not loaded", zap.Error(err))
		}
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, telemetry.Handler())
		srv := httpsrv.New(&http.Server{Addr: cfg.Metrics.Addr, Handler: mux}, logger, closeTimeout)
		if err := srv.Start(); err != nil {
			return err
		}
		closers = append(closers, srv)
	}

	return NewMenu(os.Stdin, os.Stdout, clt).Run(ctx)
}

func clientOption(cfg config.Config, logger *zap.Logger) client.Option {
	recorders := record.EasyRecorders("chord_command_duration_seconds", logger, telemetry.Registry)
	opt := client.Option{}.
		SetLogger(logger).
		SetSettleTimeout(cfg.Settle).
		AddMiddle(client.NewRecorderMiddle(recorders))
	if cfg.Commands.Rate > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.Commands.Rate), cfg.Commands.Burst)
		opt = opt.AddMiddle(client.LimiterMiddle(limiter, cfg.Settle))
	}
	return opt
}

func keySource(ctx context.Context, cfg config.Config, logger *zap.Logger) (keysource.Source, richclose.WithContextCloser, error) {
	if cfg.Mongo.Enabled() {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Settle)
		defer cancel()
		source, err := mongo.Connect(connectCtx, mongo.Option{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Retries:    2,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return source, richclose.WrapCloserContext(source), nil
	}
	if cfg.KeyFile == "" {
		return nil, nil, nil
	}
	return keysource.FileSource{Path: cfg.KeyFile, Logger: logger}, nil, nil
}

func populate(ctx context.Context, clt *client.Client, source keysource.Source, logger *zap.Logger) error {
	keys, err := source.Keys(ctx)
	if err != nil {
		return err
	}
	added, err := clt.Populate(ctx, keys)
	if err != nil {
		return errors.Wrap(err, "populate ring")
	}
	logger.Info("initial keys loaded", zap.Int("keys", added))
	return nil
}
