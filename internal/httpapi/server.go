package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AuraReaper/voom/internal/drivers"
	"github.com/AuraReaper/voom/internal/location"
	"github.com/AuraReaper/voom/internal/registry"
	"github.com/AuraReaper/voom/internal/trip"
)

// Server exposes the synchronous preview/start API and the rider/driver
// websocket endpoints over one router.
type Server struct {
	trips     *trip.Service
	lifecycle *trip.Lifecycle
	locations *location.Processor
	sessions  *registry.Registry
	pool      *drivers.Directory
	logger    *slog.Logger
	router    *mux.Router
	upgrader  websocket.Upgrader
}

func NewServer(trips *trip.Service, lifecycle *trip.Lifecycle, locations *location.Processor, sessions *registry.Registry, pool *drivers.Directory, logger *slog.Logger) *Server {
	s := &Server{
		trips:     trips,
		lifecycle: lifecycle,
		locations: locations,
		sessions:  sessions,
		pool:      pool,
		logger:    logger,
		router:    mux.NewRouter(),
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/trips/preview", s.handlePreviewTrip).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/trips/start", s.handleStartTrip).Methods(http.MethodPost)
	s.router.HandleFunc("/ws/riders", s.handleRiderWS).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/drivers", s.handleDriverWS).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }
