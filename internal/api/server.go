// Package api serves the published vehicle state and a few controls over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/drivemode"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/heating"
	"codeberg.org/mutker/vehiclectl/internal/ignition"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/prefs"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// BridgeStatus reports the property bridge health.
type BridgeStatus interface {
	Status() property.Status
}

// Aggregator is the read side of the metrics aggregator.
type Aggregator interface {
	Status() string
	Snapshots() *telemetry.Cell[telemetry.VehicleSnapshot]
	SuppressedProperties() []string
}

// Heating is the heating controller surface the API needs.
type Heating interface {
	State() heating.State
	Settings() heating.Settings
	UpdateSettings(s heating.Settings) error
}

// DriveModes is the drive-mode registry surface the API needs.
type DriveModes interface {
	Mode() string
	Entries(n int) []drivemode.Entry
	Apply(ctx context.Context, m catalog.DriveMode) error
}

// Deps are the components the server reads from. Prefs may be nil.
type Deps struct {
	Bridge     BridgeStatus
	Aggregator Aggregator
	Ignition   *telemetry.Cell[ignition.State]
	Heating    Heating
	DriveModes DriveModes
	Prefs      prefs.Store
	Log        logger.Logger
}

// Server represents the API server
type Server struct {
	deps   Deps
	log    logger.Logger
	router *mux.Router
}

func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.New("api")
	}

	s := &Server{
		deps:   deps,
		log:    log,
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/ignition", s.handleIgnition).Methods(http.MethodGet)
	v1.HandleFunc("/heating", s.handleHeating).Methods(http.MethodGet)
	v1.HandleFunc("/heating/settings", s.handleUpdateHeating).Methods(http.MethodPut)
	v1.HandleFunc("/drivemode", s.handleDriveMode).Methods(http.MethodGet)
	v1.HandleFunc("/drivemode", s.handleApplyDriveMode).Methods(http.MethodPost)
	v1.HandleFunc("/drivemode/log", s.handleDriveModeLog).Methods(http.MethodGet)
	v1.Use(jsonMiddleware)

	s.router.Use(s.loggingMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", addr).Msg("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.New().Wrap(ErrServe, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(ErrServe, err)
	}
	s.log.Info().Msg("API server stopped")

	return nil
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, err error) {
	resp := apiResponse{Success: false, Error: err.Error()}
	var e errors.Error
	if errors.As(err, &e) {
		resp.Code = string(e.Code())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
