package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/connections"
	"github.com/mikey/intent-router/internal/core"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies accepted by the API.
const maxBodyBytes = 64 * 1024

// Server exposes the router over HTTP. It implements the
// RequestListener interface.
type Server struct {
	router   *core.RouterService
	store    *cache.Store
	registry *connections.Registry
	logger   *zap.Logger
	srv      *http.Server
}

// NewServer creates the HTTP surface for the router.
func NewServer(
	listenAddr string,
	router *core.RouterService,
	store *cache.Store,
	registry *connections.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   router,
		store:    store,
		registry: registry,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/automation/detect", s.handleDetect)
		r.Get("/state/{key}", s.handleStateGet)
		r.Put("/state/{key}", s.handleStatePut)
		r.Delete("/state/{key}", s.handleStateDelete)
		r.Post("/connections/{userID}/{serviceID}", s.handleConnect)
	})

	s.srv = &http.Server{
		Addr:         listenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving in the background.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("HTTP listener starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP listener failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type classifyRequest struct {
	Text    string `json:"text"`
	Context struct {
		PreferredProvider    string          `json:"preferred_provider"`
		ProviderAvailability map[string]bool `json:"provider_availability"`
	} `json:"context"`
}

type classifyResponse struct {
	Category     string  `json:"category"`
	Provider     string  `json:"provider"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"`
	Reasoning    string  `json:"reasoning,omitempty"`
	ProcessingID string  `json:"processing_id"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result := s.router.Classify(r.Context(), req.Text, core.RequestContext{
		PreferredProvider:    req.Context.PreferredProvider,
		ProviderAvailability: req.Context.ProviderAvailability,
	})

	s.writeJSON(w, http.StatusOK, classifyResponse{
		Category:     string(result.Category),
		Provider:     result.Provider,
		Confidence:   result.Confidence,
		Source:       string(result.Source),
		Reasoning:    result.Reasoning,
		ProcessingID: result.ProcessingID,
	})
}

type detectRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

type detectResponse struct {
	Match         *core.AutomationMatch `json:"match"`
	MissingParams []string              `json:"missing_params,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	match, err := s.router.DetectAutomation(r.Context(), req.Text, req.UserID)

	resp := detectResponse{Match: match}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		resp.MissingParams = verr.Missing
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStateGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok := s.store.Get(cache.NamespaceUIState, key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "state not found")
		return
	}
	s.writeJSON(w, http.StatusOK, value)
}

func (s *Server) handleStatePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !json.Valid(body) {
		s.writeError(w, http.StatusBadRequest, "state value must be JSON")
		return
	}

	s.store.Set(cache.NamespaceUIState, key, json.RawMessage(body), 0)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStateDelete(w http.ResponseWriter, r *http.Request) {
	s.store.Invalidate(cache.NamespaceUIState, chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.registry.Connect(chi.URLParam(r, "userID"), chi.URLParam(r, "serviceID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
