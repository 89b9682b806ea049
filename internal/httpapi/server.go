package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cellkeeper/cellkeeper/internal/cache"
	"github.com/cellkeeper/cellkeeper/internal/inventory"
	"github.com/cellkeeper/cellkeeper/internal/logging"
)

type Server struct {
	inventorySvc *inventory.Service
	listCache    cache.Cache
	logger       *logging.Logger
	server       *http.Server
}

func New(inventorySvc *inventory.Service, listCache cache.Cache, logger *logging.Logger) *Server {
	return &Server{
		inventorySvc: inventorySvc,
		listCache:    listCache,
		logger:       logger,
	}
}

// Handler builds the route table. Split out from Start so tests can drive
// it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	batteryAPI := NewBatteryAPI(s.inventorySvc, s.listCache, s.logger)
	batteryAPI.RegisterRoutes(mux, s.corsMiddleware)

	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// handleHealth reports degraded when the last durable write failed; local
// state keeps serving either way.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	response := map[string]string{"status": status}

	if err := s.inventorySvc.LastSyncError(); err != nil {
		response["status"] = "degraded"
		response["lastSyncError"] = err.Error()
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
