// Package httpsrv runs an http.Server under a prob so it can be started
// and closed like the rest of the process.
package httpsrv

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/JWilliamson45/chord/syncrun"
	"github.com/JWilliamson45/chord/syncrun/prob"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Launcher struct {
	srv           *http.Server
	pb            *prob.Prob
	logger        *zap.Logger
	closeDuration time.Duration
	listener      net.Listener
}

func New(server *http.Server, logger *zap.Logger, closeDuration time.Duration) *Launcher {
	if logger == nil {
		logger = zap.L()
	}
	srv := &Launcher{
		srv:           server,
		logger:        logger,
		closeDuration: closeDuration,
	}
	srv.pb = prob.New(srv.run)
	return srv
}

// Start binds the address before returning so a bad address is reported
// to the caller.
func (srv *Launcher) Start() error {
	ln, err := net.Listen("tcp", srv.srv.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", srv.srv.Addr)
	}
	srv.listener = ln
	if !srv.pb.Start() {
		ln.Close()
		return errors.New("http server already started")
	}
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (srv *Launcher) Addr() string {
	if srv.listener == nil {
		return srv.srv.Addr
	}
	return srv.listener.Addr().String()
}

func (srv *Launcher) CloseWithContext(ctx context.Context) error {
	return prob.WrapCloser(srv.pb).CloseWithContext(ctx)
}

func (srv *Launcher) run(ctx context.Context) {
	syncrun.Run(ctx, func(ctx context.Context) {
		srv.logger.Info("http server start listening", zap.String("addr", srv.Addr()))
		err := srv.srv.Serve(srv.listener)
		if err != nil && err != http.ErrServerClosed {
			srv.logger.Error("http server stop", zap.String("addr", srv.Addr()), zap.Error(err))
		}
	}, func(ctx context.Context) {
		<-ctx.Done()
		dur := srv.closeDuration
		if dur == 0 {
			dur = 10 * time.Second
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), dur)
		defer cancel()
		if err := srv.srv.Shutdown(closeCtx); err != nil {
			srv.logger.Error("shut down server err", zap.String("addr", srv.Addr()), zap.Error(err))
		}
	})
}
