package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"

	"rewards-controlplane/pkg/config"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(NewHttpServer),
	fx.Invoke(Run),
)

type Server struct {
	server *http.Server
	certs  *certReloader
}

type Params struct {
	fx.In
	Config  *config.Config
	Handler *gin.Engine
}

// NewHttpServer wraps the gin engine. WRITE_TIMEOUT defaults to zero so the
// recommendation stream is not cut off mid-connection.
func NewHttpServer(p Params) *Server {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Addr),
			Handler:      p.Handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}

	if cfg.TLS.Enable {
		srv.certs = &certReloader{certPath: cfg.TLS.CertPath, keyPath: cfg.TLS.KeyPath}
		srv.certs.load()
		srv.server.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: srv.certs.get,
		}
	}
	return srv
}

// certReloader serves the latest key pair found on disk.
type certReloader struct {
	certPath string
	keyPath  string
	current  atomic.Pointer[tls.Certificate]
}

func (r *certReloader) get(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if c := r.current.Load(); c != nil {
		return c, nil
	}
	return nil, errors.New("no TLS certificate loaded")
}

func (r *certReloader) load() {
	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		zap.L().Error("failed to load TLS certificate", zap.String("cert", r.certPath), zap.Error(err))
		return
	}
	r.current.Store(&cert)
	zap.L().Info("TLS certificate loaded", zap.String("cert", r.certPath))
}

// watch reloads on changes in the directories holding the key pair.
// Mounted secrets are swapped by rename, so the files themselves cannot be
// watched.
func (r *certReloader) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range []string{filepath.Dir(r.certPath), filepath.Dir(r.keyPath)} {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					r.load()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zap.L().Warn("TLS watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func Run(lc fx.Lifecycle, srv *Server) {
	ctx, stop := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if srv.certs != nil {
				if err := srv.certs.watch(ctx); err != nil {
					zap.L().Warn("TLS hot reload disabled", zap.Error(err))
				}
			}
			zap.L().Info("starting HTTP server",
				zap.String("addr", srv.server.Addr),
				zap.Bool("tls", srv.certs != nil))
			go srv.serve()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stop()
			zap.L().Info("shutting down HTTP server")
			return srv.server.Shutdown(ctx)
		},
	})
}

func (s *Server) serve() {
	var err error
	if s.certs != nil {
		err = s.server.ListenAndServeTLS("", "")
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Fatal("HTTP server exited", zap.Error(err))
	}
}
