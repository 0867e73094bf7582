// Package uiserver implements the operator control plane described in
// spec.md §4.6: a WebSocket endpoint speaking the "ui0.0.1" sub-protocol
// and an HTTP endpoint at POST /ui/{version}/{procedure}, both dispatching
// onto the shared ControlBus and returning the same {status, ...} shape.
package uiserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/config"
	"stationfleet/internal/controlbus"
)

// Server wraps http.Server with the control-plane routing, grounded on the
// teacher's api-gateway/internal/http.Server: same ListenAndServe/Shutdown
// lifecycle, generalized to mount either transport (or both) depending on
// cfg.ApplicationProtocol.
type Server struct {
	cfg    config.UIServerConfig
	bus    *controlbus.Bus
	logger *zap.Logger
	server *http.Server
}

// New builds a Server. It does not start listening; call Start.
func New(cfg config.UIServerConfig, bus *controlbus.Bus, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, bus: bus, logger: logger}

	mux := http.NewServeMux()
	switch cfg.ApplicationProtocol {
	case "ws":
		mux.HandleFunc("/", s.handleControlWS)
	case "http":
		mux.Handle("/", s.newRouter())
	default:
		// Unset/unknown protocol serves both: WS upgrades on the control
		// path, everything else falls through to the HTTP router.
		router := s.newRouter()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if isWebSocketUpgrade(r) {
				s.handleControlWS(w, r)
				return
			}
			router.ServeHTTP(w, r)
		})
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func isWebSocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully within 10s, per the teacher's Run(ctx) pattern.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("uiserver: listening", zap.String("addr", s.server.Addr), zap.String("protocol", s.cfg.ApplicationProtocol))
		if err := s.server.ListenAndServe(); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Stop shuts the server down immediately, used by supervisor reset().
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
