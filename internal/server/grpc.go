// Package server exposes the ledger's read side: a JSON query API over
// the grpc-gateway mux, Prometheus metrics, health probes, and a gRPC
// endpoint carrying health and reflection for tooling.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mfactory-lab/omnisol/internal/observability"
	"github.com/mfactory-lab/omnisol/internal/query"
)

// Server wraps the gRPC server and the HTTP query mux.
type Server struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	queryService  *query.Service
	metrics       *observability.Metrics
	healthChecker *observability.HealthChecker
	log           zerolog.Logger
}

func NewServer(grpcAddr, httpAddr string, qs *query.Service, metrics *observability.Metrics, hc *observability.HealthChecker) *Server {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	return &Server{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		queryService:  qs,
		metrics:       metrics,
		healthChecker: hc,
		log:           observability.NewLogger("server"),
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP query API (blocking). Routes are registered
// on a grpc-gateway mux so path variables and error shapes match the
// gateway conventions.
func (s *Server) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()
	if err := s.registerRoutes(mux); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	httpMux.Handle("/metrics", promhttp.Handler())
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpAddr).Msg("HTTP query API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(mux *runtime.ServeMux) error {
	routes := []struct {
		path    string
		handler runtime.HandlerFunc
	}{
		{"/v1/status", s.handleStatus},
		{"/v1/pools", s.handleListPools},
		{"/v1/pools/{address}", s.handleGetPool},
		{"/v1/users", s.handleListUsers},
		{"/v1/users/{wallet}", s.handleGetUser},
		{"/v1/collaterals", s.handleListCollaterals},
		{"/v1/withdraw-requests", s.handleListWithdrawRequests},
		{"/v1/oracle", s.handleGetOracle},
		{"/v1/whitelist", s.handleListWhitelist},
		{"/v1/stake-pools/{address}", s.handleGetStakePool},
	}
	for _, r := range routes {
		if err := mux.HandlePath(http.MethodGet, r.path, r.handler); err != nil {
			return fmt.Errorf("route %s: %w", r.path, err)
		}
	}
	return nil
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.writeJSON(w, r, http.StatusOK, s.queryService.Status(r.Context()))
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	pools := s.queryService.ListPools(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{"pools": pools})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	addr, ok := s.pathUUID(w, r, pathParams, "address")
	if !ok {
		return
	}
	pool, found := s.queryService.GetPool(r.Context(), addr)
	if !found {
		s.writeError(w, r, http.StatusNotFound, "pool not found")
		return
	}
	s.writeJSON(w, r, http.StatusOK, pool)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	users := s.queryService.ListUsers(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	wallet, ok := s.pathUUID(w, r, pathParams, "wallet")
	if !ok {
		return
	}
	user, found := s.queryService.GetUser(r.Context(), wallet)
	if !found {
		s.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	s.writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleListCollaterals(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var wallet *uuid.UUID
	if q := r.URL.Query().Get("wallet"); q != "" {
		parsed, err := uuid.Parse(q)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid wallet filter")
			return
		}
		wallet = &parsed
	}
	collaterals := s.queryService.ListCollaterals(r.Context(), wallet)
	s.writeJSON(w, r, http.StatusOK, map[string]any{"collaterals": collaterals})
}

func (s *Server) handleListWithdrawRequests(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	requests := s.queryService.ListWithdrawRequests(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{"requests": requests})
}

func (s *Server) handleGetOracle(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	oracle, found := s.queryService.GetOracle(r.Context())
	if !found {
		s.writeError(w, r, http.StatusNotFound, "oracle not initialized")
		return
	}
	s.writeJSON(w, r, http.StatusOK, oracle)
}

func (s *Server) handleListWhitelist(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	entries := s.queryService.ListWhitelist(r.Context())
	s.writeJSON(w, r, http.StatusOK, map[string]any{"whitelist": entries})
}

func (s *Server) handleGetStakePool(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	addr, ok := s.pathUUID(w, r, pathParams, "address")
	if !ok {
		return
	}
	sp, found := s.queryService.GetStakePool(r.Context(), addr)
	if !found {
		s.writeError(w, r, http.StatusNotFound, "stake pool not found")
		return
	}
	s.writeJSON(w, r, http.StatusOK, sp)
}

// ============================================================
// Response helpers
// ============================================================

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, pathParams map[string]string, name string) (uuid.UUID, bool) {
	raw, ok := pathParams[name]
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("missing %s", name))
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return parsed, true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	start := time.Now()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("response encode failed")
	}

	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(r.URL.Path, fmt.Sprintf("%d", code)).Inc()
		s.metrics.QueryDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(r.URL.Path, fmt.Sprintf("%d", code)).Inc()
	}
	s.writeJSON(w, r, code, map[string]string{"error": msg})
}
