package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/config"
	"github.com/wricardo/kiosk-shell/kiosk/record"
	"github.com/wricardo/kiosk-shell/kiosk/service"
	"github.com/wricardo/kiosk-shell/monitoring"
	"github.com/wricardo/kiosk-shell/transport/websocket"
)

// Version is reported by GET /api
const Version = "1.0.0"

// Options configure optional parts of the server
type Options struct {
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	RateLimit config.RateLimitConfig
	// StaticDir serves the presentation layer when set
	StaticDir string
}

// Server represents the REST API server
type Server struct {
	service service.KioskService
	hub     *websocket.Hub
	router  *mux.Router
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewServer creates a new API server
func NewServer(kioskService service.KioskService, hub *websocket.Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		service: kioskService,
		hub:     hub,
		router:  mux.NewRouter(),
		metrics: opts.Metrics,
		log:     opts.Logger.Named("api"),
	}

	s.setupRoutes(opts)
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(opts Options) {
	s.router.Use(monitoring.Middleware(s.metrics))
	if opts.RateLimit.Enabled {
		s.router.Use(rateLimit(opts.RateLimit))
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.handleInfo).Methods("GET")

	// Catalog
	api.HandleFunc("/pages", s.handleListPages).Methods("GET")

	// Views
	api.HandleFunc("/views", s.handleListViews).Methods("GET")
	api.HandleFunc("/views", s.handleDestroyAll).Methods("DELETE")
	api.HandleFunc("/views/{id}/show", s.handleShow).Methods("POST")
	api.HandleFunc("/views/{id}/hide", s.handleHide).Methods("POST")
	api.HandleFunc("/views/{id}/navigate", s.handleNavigate).Methods("POST")
	api.HandleFunc("/views/{id}/control", s.handleControl).Methods("POST")
	api.HandleFunc("/views/{id}/can-go-back", s.handleCanGoBack).Methods("GET")
	api.HandleFunc("/views/{id}/url", s.handleCurrentURL).Methods("GET")
	api.HandleFunc("/views/{id}/remove-elements", s.handleRemoveElements).Methods("POST")

	// Idle timer
	api.HandleFunc("/idle", s.handleIdleStatus).Methods("GET")
	api.HandleFunc("/idle/timeout", s.handleSetIdleTimeout).Methods("PUT")
	api.HandleFunc("/idle/stop", s.handleStopIdle).Methods("POST")
	api.HandleFunc("/idle/start", s.handleStartIdle).Methods("POST")
	api.HandleFunc("/idle/suppress", s.handleSuppressIdle).Methods("PUT")
	api.HandleFunc("/activity", s.handleActivity).Methods("POST")

	// Kiosk record
	api.HandleFunc("/kiosk", s.handleGetKiosk).Methods("GET")
	api.HandleFunc("/kiosk", s.handleSaveKiosk).Methods("PUT")
	api.HandleFunc("/kiosk", s.handleResetKiosk).Methods("DELETE")

	api.HandleFunc("/quit", s.handleQuit).Methods("POST")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", monitoring.Handler(s.metrics)).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)

	if opts.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the mux router so callers can mount extra endpoints
func (s *Server) Router() *mux.Router {
	return s.router
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError maps a service error onto its HTTP status
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, InfoResponse{
		Name:    "kiosk-shell",
		Version: Version,
		Endpoints: []string{
			"GET /api/pages",
			"GET|DELETE /api/views",
			"POST /api/views/{id}/show|hide|navigate|control|remove-elements",
			"GET /api/views/{id}/can-go-back|url",
			"GET /api/idle",
			"PUT /api/idle/timeout|suppress",
			"POST /api/idle/stop|start",
			"POST /api/activity",
			"GET|PUT|DELETE /api/kiosk",
			"POST /api/quit",
			"GET /ws",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Catalog Handlers

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.service.ListPages(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PagesResponse{Count: len(pages), Pages: pages})
}

// View Handlers

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.service.ListViews(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	resp := ViewsResponse{Count: len(views), Views: views}
	for _, v := range views {
		if v.Visible {
			resp.Visible = v.ID
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDestroyAll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DestroyAllViews(r.Context()); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "destroyed"})
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.ShowView(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "visible", ID: id})
}

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.HideView(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "hidden", ID: id})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req NavigateRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.NavigateView(r.Context(), id, req.URL); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "navigated", ID: id})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ControlRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.NavigationControl(r.Context(), id, req.Action); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "ok", ID: id})
}

func (s *Server) handleCanGoBack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := s.service.CanGoBack(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CanGoBackResponse{ID: id, CanGoBack: ok})
}

func (s *Server) handleCurrentURL(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	url, ok, err := s.service.CurrentURL(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	resp := URLResponse{ID: id}
	if ok {
		resp.URL = &url
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveElements(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RemoveElementsRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.RemoveElements(r.Context(), id, req.Selector); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "removed", ID: id})
}

// Idle Handlers

func (s *Server) handleIdleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.IdleStatus(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetIdleTimeout(w http.ResponseWriter, r *http.Request) {
	var req IdleTimeoutRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.SetIdleTimeout(r.Context(), time.Duration(req.TimeoutMS)*time.Millisecond); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.handleIdleStatus(w, r)
}

func (s *Server) handleStopIdle(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StopIdleTimer(r.Context()); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.handleIdleStatus(w, r)
}

func (s *Server) handleStartIdle(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StartIdleTimer(r.Context()); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.handleIdleStatus(w, r)
}

func (s *Server) handleSuppressIdle(w http.ResponseWriter, r *http.Request) {
	var req SuppressRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.SuppressIdle(r.Context(), req.Suppressed); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.handleIdleStatus(w, r)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.RecordActivity(r.Context(), req.Kind); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Kiosk Record Handlers

func (s *Server) handleGetKiosk(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetKiosk(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleSaveKiosk(w http.ResponseWriter, r *http.Request) {
	var info record.Info
	if err := decode(r, &info); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.SaveKiosk(r.Context(), info); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.handleGetKiosk(w, r)
}

func (s *Server) handleResetKiosk(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResetKiosk(r.Context()); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "reset"})
}

// handleQuit answers before teardown starts; the process exits once every
// view is gone.
func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusAccepted, StatusResponse{Status: "quitting"})
	go func() {
		if err := s.service.Quit(context.Background()); err != nil {
			s.log.Error("quit failed", zap.Error(err))
		}
	}()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}
	s.hub.ServeWS(w, r)
}
