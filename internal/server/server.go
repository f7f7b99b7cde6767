// Package server exposes the geocoding session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/geocoder-cli/internal/export"
	"github.com/sells-group/geocoder-cli/internal/translate"
)

// Geocoder resolves a free-form query to a result set.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*translate.ResultSet, error)
}

// Server is the HTTP front end over a Geocoder.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	geocoder Geocoder
	port     int
}

// New builds the router and returns a server ready to Start.
func New(geocoder Geocoder, port int) *Server {
	s := &Server{
		geocoder: geocoder,
		port:     port,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/geocode", s.handleGeocode)

	s.router = r
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	zap.L().Info("starting server", zap.Int("port", s.port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter is required"})
		return
	}

	rs, err := s.geocoder.Geocode(r.Context(), query)
	if err != nil {
		zap.L().Error("geocoding failed",
			zap.String("query", query),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "geocoding failed"})
		return
	}

	data, err := export.GeoJSON(rs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encoding failed"})
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
