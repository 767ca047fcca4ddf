// Package httpapi exposes the sync group store and the share access gate
// over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/ratelimit"
	"github.com/dmitrijs2005/manylla-sync/internal/server/services"
	"github.com/gorilla/mux"
)

// bodyOverhead is the room left for JSON framing around a maximal blob.
const bodyOverhead = 16 * 1024

type Server struct {
	address           string
	router            *mux.Router
	sync              *services.SyncService
	shares            *services.ShareService
	cleanup           *services.CleanupService
	limiter           *ratelimit.Limiter
	healthExempt      *ratelimit.ExemptList
	trustProxyHeaders bool
	allowedOrigins    []string
	adminSecret       []byte
	maxBodyBytes      int64
	shutdownTimeout   time.Duration
	logger            logging.Logger
}

func NewServer(cfg *config.Config, l logging.Logger, ss *services.SyncService, sh *services.ShareService,
	cs *services.CleanupService, limiter *ratelimit.Limiter, exempt *ratelimit.ExemptList) *Server {
	s := &Server{
		address:           cfg.EndpointAddrHTTP,
		sync:              ss,
		shares:            sh,
		cleanup:           cs,
		limiter:           limiter,
		healthExempt:      exempt,
		trustProxyHeaders: cfg.TrustProxyHeaders,
		allowedOrigins:    cfg.AllowedOrigins,
		adminSecret:       []byte(cfg.AdminSecret),
		maxBodyBytes:      cfg.MaxBlobSize + bodyOverhead,
		shutdownTimeout:   cfg.ShutdownTimeout,
		logger:            l.With("module", "http_server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", allowMethods(s.limit(ratelimit.ClassHealth, s.healthCheck), http.MethodGet))

	r.HandleFunc("/create", allowMethods(s.limit(ratelimit.ClassSync, s.create), http.MethodPost))
	r.HandleFunc("/pull", allowMethods(s.limit(ratelimit.ClassSync, s.pull), http.MethodGet))
	r.HandleFunc("/push", allowMethods(s.limit(ratelimit.ClassSync, s.push), http.MethodPost))
	r.HandleFunc("/delete", allowMethods(s.limit(ratelimit.ClassSync, s.delete), http.MethodPost))

	r.HandleFunc("/share/access", allowMethods(s.limit(ratelimit.ClassShare, s.shareAccess), http.MethodPost))

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/cleanup", allowMethods(s.requireAdmin(s.adminCleanup), http.MethodPost))
	admin.HandleFunc("/groups/{sync_id}", allowMethods(s.requireAdmin(s.adminGroup), http.MethodGet))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "Not found")
	})

	r.Use(s.requestContext, s.logRequests, s.cors, s.limitBody)
	return r
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
