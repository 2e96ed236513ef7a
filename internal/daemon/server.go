package daemon

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/workshop/internal/carousel"
	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/engine"
	"github.com/felixgeelhaar/workshop/internal/metrics"
	"github.com/felixgeelhaar/workshop/internal/ui"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

//go:embed web/index.html
var indexPage []byte

// Server represents the workshop daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	engine  *engine.Engine
	hub     *Hub
	metrics *metrics.Metrics
	version string
	storage string
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config *config.LocalConfig
	// Engine is used to build the workshop engine. Its change hooks are
	// chained with the websocket hub.
	Engine  engine.Options
	Metrics *metrics.Metrics // Optional; enables /metrics
	Version string
	Storage string // Attempt history driver, reported by /v1/status
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("daemon: config is required")
	}

	s := &Server{
		cfg:     cfg.Config,
		router:  http.NewServeMux(),
		hub:     NewHub(),
		metrics: cfg.Metrics,
		version: cfg.Version,
		storage: cfg.Storage,
	}

	opts := cfg.Engine
	opts.Config = cfg.Config
	if cfg.Metrics != nil && opts.Metrics == nil {
		opts.Metrics = cfg.Metrics
	}
	onCarousel := opts.OnCarouselChange
	opts.OnCarouselChange = func(st carousel.State) {
		s.hub.Broadcast(MessageCarousel, st)
		if onCarousel != nil {
			onCarousel(st)
		}
	}
	onWorkshop := opts.OnWorkshopChange
	opts.OnWorkshopChange = func(snap workshop.Snapshot) {
		s.hub.Broadcast(MessageWorkshop, snap)
		if onWorkshop != nil {
			onWorkshop(snap)
		}
	}

	eng, err := engine.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	s.engine = eng
	s.hub.engine = eng

	s.setupRoutes()

	// Create HTTP server with middleware chain
	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	var obs requestObserver
	if s.metrics != nil {
		obs = s.metrics
	}
	handler := correlationIDMiddleware(recoveryMiddleware(requestMiddleware(obs, s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Engine returns the workshop engine served by s.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Course index
	s.router.HandleFunc("GET /v1/courses", s.handleListCourses)

	// Carousel
	s.router.HandleFunc("GET /v1/carousel", s.handleGetCarousel)
	s.router.HandleFunc("POST /v1/carousel/next", s.handleCarouselNext)
	s.router.HandleFunc("POST /v1/carousel/previous", s.handleCarouselPrevious)
	s.router.HandleFunc("POST /v1/carousel/jump/{index}", s.handleCarouselJump)
	s.router.HandleFunc("POST /v1/carousel/input", s.handleCarouselInput)
	s.router.HandleFunc("POST /v1/carousel/commit", s.handleCarouselCommit)
	s.router.HandleFunc("POST /v1/carousel/active", s.handleCarouselActive)

	// Workshop
	s.router.HandleFunc("GET /v1/workshop", s.handleGetWorkshop)
	s.router.HandleFunc("GET /v1/workshop/surface", s.handleGetSurface)
	s.router.HandleFunc("POST /v1/workshop/begin", s.handleBegin)
	s.router.HandleFunc("POST /v1/workshop/submit", s.handleSubmit)
	s.router.HandleFunc("POST /v1/workshop/run", s.handleRun)
	s.router.HandleFunc("POST /v1/workshop/exercises/{index}", s.handleGoTo)
	s.router.HandleFunc("POST /v1/workshop/click", s.handleClick)
	s.router.HandleFunc("POST /v1/workshop/solution", s.handleSolution)
	s.router.HandleFunc("POST /v1/workshop/reset-code", s.handleResetCode)
	s.router.HandleFunc("GET /v1/workshop/hint", s.handleHint)
	s.router.HandleFunc("POST /v1/workshop/back", s.handleBack)
	s.router.HandleFunc("GET /v1/workshop/editor", s.handleGetEditor)
	s.router.HandleFunc("PUT /v1/workshop/editor", s.handleSetEditor)

	// Notices & history
	s.router.HandleFunc("GET /v1/notices", s.handleNotices)
	s.router.HandleFunc("GET /v1/attempts", s.handleAttempts)

	// Live updates
	s.router.HandleFunc("GET /v1/ws", s.hub.ServeWS)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}
	s.router.HandleFunc("GET /{$}", s.handleIndex)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting workshop daemon",
		"addr", s.server.Addr,
		"courses", s.engine.Catalog.Len(),
		"storage", s.storage,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	s.hub.Close()
	s.engine.Close()

	return s.server.Shutdown(ctx)
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Controller.Snapshot()
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"version":   s.version,
		"source":    fmt.Sprint(s.engine.Loader.Source()),
		"courses":   s.engine.Catalog.Len(),
		"storage":   s.storage,
		"events":    s.cfg.Events.Enabled,
		"clients":   s.hub.Len(),
		"state":     snap.State,
		"course_id": snap.CourseID,
	})
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"courses": s.engine.Catalog.List(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexPage)
}

// Carousel handlers

func (s *Server) handleGetCarousel(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.engine.Carousel.State())
}

func (s *Server) handleCarouselNext(w http.ResponseWriter, r *http.Request) {
	s.carouselMove(w, s.engine.Carousel.Next)
}

func (s *Server) handleCarouselPrevious(w http.ResponseWriter, r *http.Request) {
	s.carouselMove(w, s.engine.Carousel.Previous)
}

func (s *Server) handleCarouselJump(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid course index", err)
		return
	}
	if index < 0 || index >= s.engine.Carousel.Len() {
		s.jsonError(w, http.StatusBadRequest, "course index out of range", nil)
		return
	}
	s.carouselMove(w, func() (bool, error) { return s.engine.Carousel.JumpTo(index) })
}

func (s *Server) handleCarouselInput(w http.ResponseWriter, r *http.Request) {
	var in carousel.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	s.carouselMove(w, func() (bool, error) { return s.engine.Carousel.Handle(r.Context(), in) })
}

// carouselMove runs a carousel operation while the carousel is the active
// view and reports whether it moved.
func (s *Server) carouselMove(w http.ResponseWriter, move func() (bool, error)) {
	if !s.engine.Carousel.State().Active {
		s.writeError(w, carousel.ErrInactive)
		return
	}
	moved, err := move()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"moved":    moved,
		"carousel": s.engine.Carousel.State(),
		"workshop": s.engine.Controller.Snapshot(),
	})
}

func (s *Server) handleCarouselCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID string `json:"course_id,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	var err error
	if req.CourseID != "" {
		err = s.engine.SelectCourse(r.Context(), req.CourseID)
	} else {
		err = s.engine.Carousel.Commit(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.engine.Controller.Snapshot())
}

func (s *Server) handleCarouselActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Active == nil {
		s.jsonError(w, http.StatusBadRequest, "active is required", nil)
		return
	}
	s.engine.Carousel.SetActive(*req.Active)
	s.jsonResponse(w, http.StatusOK, s.engine.Carousel.State())
}

// Workshop handlers

func (s *Server) handleGetWorkshop(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.engine.Controller.Snapshot())
}

func (s *Server) handleGetSurface(w http.ResponseWriter, r *http.Request) {
	rendered, err := s.engine.Controller.Screen().Render()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to render surface", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rendered)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Controller.Begin(); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.engine.Controller.Snapshot())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code *string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Code == nil {
		s.jsonError(w, http.StatusBadRequest, "code is required", nil)
		return
	}

	fb, err := s.engine.Controller.Submit(r.Context(), *req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, fb)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	fb, err := s.engine.Controller.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, fb)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid exercise index", err)
		return
	}
	if err := s.engine.Controller.GoTo(index); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.engine.Controller.Snapshot())
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Generation uint64 `json:"generation"`
		Target     string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Target == "" {
		s.jsonError(w, http.StatusBadRequest, "target is required", nil)
		return
	}

	if err := s.engine.Controller.Screen().Click(req.Generation, req.Target); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.engine.Controller.Snapshot())
}

func (s *Server) handleSolution(w http.ResponseWriter, r *http.Request) {
	code, err := s.engine.Controller.ShowSolution()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"code": code})
}

func (s *Server) handleResetCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.engine.Controller.ResetCode()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"code": code})
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	hint, err := s.engine.Controller.Hint()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"hint": hint})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.engine.Controller.BackToCourses()
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"workshop": s.engine.Controller.Snapshot(),
		"carousel": s.engine.Carousel.State(),
	})
}

func (s *Server) handleGetEditor(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"code": s.engine.Controller.Editor().Code(),
	})
}

func (s *Server) handleSetEditor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	s.engine.Controller.Editor().SetCode(req.Code)
	s.jsonResponse(w, http.StatusOK, map[string]string{"code": req.Code})
}

// Notices & history handlers

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"notices": s.engine.Notices.Notices(),
	})
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if s.engine.History == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "attempt history disabled", nil)
		return
	}

	courseID := r.URL.Query().Get("course_id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.jsonError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	attempts, err := s.engine.History.List(r.Context(), courseID, limit)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list attempts", err)
		return
	}
	stats, err := s.engine.History.Stats(r.Context(), courseID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to compute stats", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"stats":    stats,
	})
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// writeError maps engine errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	s.jsonError(w, status, message, err)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCourseNotFound):
		return http.StatusNotFound, "course not found"
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway, "course could not be fetched"
	case errors.Is(err, domain.ErrParse), errors.Is(err, domain.ErrCompile):
		return http.StatusUnprocessableEntity, "course document is invalid"
	case errors.Is(err, workshop.ErrExerciseOutOfRange):
		return http.StatusBadRequest, "exercise index out of range"
	case errors.Is(err, workshop.ErrSuperseded):
		return http.StatusConflict, "superseded by a newer course selection"
	case errors.Is(err, workshop.ErrInvalidTransition),
		errors.Is(err, workshop.ErrNotRunning),
		errors.Is(err, workshop.ErrNotLoaded),
		errors.Is(err, workshop.ErrCompleted):
		return http.StatusConflict, "not allowed in the current workshop state"
	case errors.Is(err, carousel.ErrUnknownInput):
		return http.StatusBadRequest, "unknown input type"
	case errors.Is(err, carousel.ErrInactive), errors.Is(err, carousel.ErrNoSelection):
		return http.StatusConflict, "carousel is not accepting input"
	case errors.Is(err, ui.ErrStaleSurface), errors.Is(err, ui.ErrNoSurface):
		return http.StatusConflict, "surface has changed"
	case errors.Is(err, ui.ErrUnknownTarget):
		return http.StatusNotFound, "unknown click target"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
