// Package mcpserver exposes the introspection operations of one backend as
// MCP tools, over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/schemalens/internal/logger"
	"github.com/koustreak/schemalens/internal/mcpserver/metrics"
)

const serverName = "schemalens"

type Server struct {
	log *logger.Logger
	cfg Config
	mcp *mcp.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log: cfg.Logger.With().Str("backend", string(cfg.Backend.Kind())).Logger(),
		cfg: cfg,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: cfg.Version,
		}, nil),
	}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Run serves until ctx is done or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Transport == TransportHTTP {
		return s.runHTTP(ctx)
	}
	return s.runStdio(ctx)
}

func (s *Server) runStdio(ctx context.Context) error {
	s.log.Info("mcp/server: serving on stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		// the client hung up or we were signalled; both are a clean exit
		return nil
	}
	return err
}

// Handler returns the HTTP routes: /mcp for the streamable MCP transport,
// /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/mcp", mcpHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.ErrorWith("failed to write healthz response", err, nil)
		}
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) runHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()
	s.log.InfoWith("mcp/server: streamable http listening", map[string]interface{}{
		"listen_addr": s.cfg.ListenAddr,
	})

	select {
	case <-ctx.Done():
		s.log.Info("mcp/server: stopping")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("mcp/server: http server shutdown complete")
		return nil
	case err := <-serveErrCh:
		s.log.ErrorWith("mcp/server: http server error", err, nil)
		return err
	}
}
