// Package api exposes the rainfall predictor over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rainfall-predictor/internal/metrics"
	"rainfall-predictor/internal/rainfall"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics is the metrics sink used by the HTTP layer.
type Metrics interface {
	ObserveRequest(route string, code int, d time.Duration)
	StreamClients() metrics.MetricsGauge
	FailureRate() float64
}

// Config configures a Server.
type Config struct {
	Port int
	// Metrics may be nil.
	Metrics Metrics
	// MetricsHandler serves /metrics. Defaults to the default Prometheus
	// registry.
	MetricsHandler http.Handler
}

// Server serves predictions.
type Server struct {
	svc      *rainfall.Service
	metrics  Metrics
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	closing   bool
}

// NewServer builds the router for svc.
func NewServer(svc *rainfall.Service, config Config) *Server {
	s := &Server{
		svc:     svc,
		metrics: config.Metrics,
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	metricsHandler := config.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", s.instrument("predict", s.handlePredict)).Methods("POST")
	api.HandleFunc("/transform", s.instrument("transform", s.handleTransform)).Methods("POST")
	api.HandleFunc("/model", s.instrument("model", s.handleModel)).Methods("GET")
	api.HandleFunc("/predictions", s.instrument("predictions", s.handlePredictions)).Methods("GET")
	// The recorder used by instrument cannot be hijacked.
	api.HandleFunc("/stream", s.handleStream).Methods("GET")
	r.HandleFunc("/health", s.instrument("health", s.handleHealth)).Methods("GET")
	r.Handle("/metrics", metricsHandler).Methods("GET")
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting rainfall API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes stream clients and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeClients()
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, rec.status, time.Since(start))
		}
	}
}
