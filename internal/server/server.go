package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/disasterboard/internal/geo"
	"github.com/jpalmerr/disasterboard/internal/location"
	"github.com/jpalmerr/disasterboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxRequestBody caps POST bodies.
	maxRequestBody = 64 << 10

	defaultTitle = "Disaster Dashboard"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

var (
	// ErrUnknownView is returned by a [Controller] for a view it does not run.
	ErrUnknownView = errors.New("unknown view")

	// ErrViewInactive is returned by a [Controller] for a view that is
	// configured but not polling yet, such as a location-dependent view
	// before a location is selected.
	ErrViewInactive = errors.New("view not active")
)

// Controller is the board the server drives.
type Controller interface {
	// Refresh requests an immediate cycle of view.
	Refresh(view string) error

	// Location returns the currently selected location.
	Location() geo.Position

	// SetLocation selects a new location and refreshes the views that
	// depend on it.
	SetLocation(pos geo.Position)
}

// Config holds the server's dependencies.
type Config struct {
	Store      store.Store
	Controller Controller // may be nil; location and refresh routes then answer 503
	Port       int
	Assets     fs.FS // embedded dashboard assets, may be nil
	Title      string
	Gatherer   prometheus.Gatherer // may be nil; /metrics is then not served
	Logger     *slog.Logger
}

// Server handles HTTP requests for the dashboard and its JSON API.
//
// Routes:
//   - GET /: embedded dashboard HTML
//   - GET /api/views, GET /api/views/{name}: current view states
//   - POST /api/views/{name}/refresh: manual refresh
//   - GET /api/sse: Server-Sent Events stream of view updates
//   - GET /api/emergency: emergency bundle for an address
//   - GET /api/locations: city catalog search
//   - GET, POST /api/location: current location, select a new one
//   - GET /metrics: Prometheus metrics
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	controller Controller
	port       int
	assets     fs.FS
	title      string
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP [Server]. The server is not started until
// [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      cfg.Store,
		controller: cfg.Controller,
		port:       cfg.Port,
		assets:     cfg.Assets,
		title:      cfg.Title,
		gatherer:   cfg.Gatherer,
		logger:     logger,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/views", s.handleViews)
	mux.HandleFunc("GET /api/views/{name}", s.handleView)
	mux.HandleFunc("POST /api/views/{name}/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/emergency", s.handleEmergency)
	mux.HandleFunc("GET /api/locations", s.handleLocations)
	mux.HandleFunc("GET /api/location", s.handleGetLocation)
	mux.HandleFunc("POST /api/location", s.handleSetLocation)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. When ctx is cancelled the server shuts down gracefully with
// a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so long-running handlers like
		// SSE end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleViews returns all view states as JSON.
func (s *Server) handleViews(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

// handleView returns the state of one view.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	state, ok := s.store.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown view %q", name))
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// handleRefresh triggers an immediate cycle of one view.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		s.writeError(w, http.StatusServiceUnavailable, "board not running")
		return
	}
	name := r.PathValue("name")
	if err := s.controller.Refresh(name); err != nil {
		if errors.Is(err, ErrUnknownView) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown view %q", name))
			return
		}
		if errors.Is(err, ErrViewInactive) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleEmergency returns contacts, shelters and safety tips for the
// address query parameter, or for the current location when it is absent.
func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" && s.controller != nil {
		address = s.controller.Location().Address
	}
	s.writeJSON(w, http.StatusOK, location.Resolve(address))
}

// handleLocations searches the city catalog.
func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, location.Search(r.URL.Query().Get("q")))
}

func (s *Server) handleGetLocation(w http.ResponseWriter, _ *http.Request) {
	if s.controller == nil {
		s.writeError(w, http.StatusServiceUnavailable, "board not running")
		return
	}
	s.writeJSON(w, http.StatusOK, s.controller.Location())
}

// setLocationRequest selects a location either by catalog query or by
// explicit coordinates.
type setLocationRequest struct {
	Query   string   `json:"query"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address"`
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		s.writeError(w, http.StatusServiceUnavailable, "board not running")
		return
	}

	var req setLocationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var pos geo.Position
	switch {
	case req.Lat != nil && req.Lng != nil:
		if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
			s.writeError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}
		pos = geo.Position{Latitude: *req.Lat, Longitude: *req.Lng, Address: strings.TrimSpace(req.Address)}
	default:
		var ok bool
		pos, ok = location.Geocode(req.Query)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "query or lat/lng required")
			return
		}
	}

	s.controller.SetLocation(pos)
	s.logger.Info("location selected", "address", pos.Address, "lat", pos.Latitude, "lng", pos.Longitude)
	s.writeJSON(w, http.StatusOK, pos)
}

// handleSSE streams view updates via Server-Sent Events.
//
// Writes carry a deadline so a slow or vanished client cannot block the
// handler past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may not be supported by some ResponseWriter impls
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, state := range s.store.GetAll() {
		data, err := json.Marshal(state)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case state, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(state)
			if err != nil {
				s.logger.Error("failed to encode view state", "view", state.View, "error", err)
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
