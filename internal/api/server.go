package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Device is the engine surface the server drives
type Device interface {
	State() state.State
	Mode() state.Mode
	Run(ctx context.Context, cmd state.Command) error
	GetAttributes(names ...string) ([]any, error)
	SetAttributes(pairs []attr.Pair) error
	AttributeInfo(name string) (attr.Info, error)
	AttributeNames() []string
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	device   Device
	hub      *Hub
	preview  http.Handler
	stats    http.Handler
	upgrader websocket.Upgrader
	version  string
}

// Options configure a Server. Preview and Stats are optional.
type Options struct {
	Device  Device
	Hub     *Hub
	Preview http.Handler
	Stats   http.Handler
	Version string
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		device:  opts.Device,
		hub:     opts.Hub,
		preview: opts.Preview,
		stats:   opts.Stats,
		version: opts.Version,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/commands/{command}", s.handleCommand).Methods("POST")

	api.HandleFunc("/attributes", s.handleGetAttributes).Methods("GET")
	api.HandleFunc("/attributes", s.handleSetAttributes).Methods("PUT")
	api.HandleFunc("/attributes/{name}", s.handleGetAttribute).Methods("GET")

	api.HandleFunc("/messages", s.handleMessages)

	if s.preview != nil {
		api.Handle("/preview.mjpeg", s.preview).Methods("GET")
	}
	if s.stats != nil {
		api.Handle("/preview/stats", s.stats).Methods("GET")
	}

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Hub returns the message fan-out the server streams from
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := logger.WithComponent("api")

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://localhost"+srv.Addr).Msg("Starting API server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Msg("API server stopped")
		return nil
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StateResponse is the body of GET /api/state
type StateResponse struct {
	State string `json:"state"`
	Mode  string `json:"mode"`
}

// AttributeValue is one named value with its description
type AttributeValue struct {
	Name  string     `json:"name"`
	Value any        `json:"value"`
	Info  *attr.Info `json:"info,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Attribute string `json:"attribute,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error(), Attribute: camerr.FailingAttribute(err)})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, camerr.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, camerr.ErrEncoderContainerMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, camerr.ErrInvalidArgument), errors.Is(err, camerr.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, camerr.ErrInvalidState), errors.Is(err, camerr.ErrCommandBusy), errors.Is(err, camerr.ErrReconfigureBusy):
		return http.StatusConflict
	case errors.Is(err, camerr.ErrNotInitialized):
		return http.StatusPreconditionFailed
	case errors.Is(err, camerr.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, camerr.ErrResponseTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, camerr.ErrStorageExhausted):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		State: s.device.State().String(),
		Mode:  s.device.Mode().String(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["command"]
	cmd, ok := state.ParseCommand(name)
	if !ok {
		writeError(w, fmt.Errorf("unknown command %q: %w", name, camerr.ErrInvalidArgument))
		return
	}

	log := logger.WithComponent("api")
	if err := s.device.Run(r.Context(), cmd); err != nil {
		log.Warn().Err(err).Str("command", name).Msg("Command failed")
		writeError(w, err)
		return
	}
	log.Debug().Str("command", name).Str("state", s.device.State().String()).Msg("Command done")
	s.handleGetState(w, r)
}

// handleGetAttributes returns the requested names in order, or every
// attribute when no name is given
func (s *Server) handleGetAttributes(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		names = s.device.AttributeNames()
	}
	values, err := s.device.GetAttributes(names...)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]AttributeValue, len(names))
	for i, n := range names {
		out[i] = AttributeValue{Name: n, Value: values[i]}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, err := s.device.AttributeInfo(name)
	if err != nil {
		writeError(w, err)
		return
	}
	values, err := s.device.GetAttributes(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AttributeValue{Name: name, Value: values[0], Info: &info})
}

// handleSetAttributes applies an ordered list of {name, value} pairs
func (s *Server) handleSetAttributes(w http.ResponseWriter, r *http.Request) {
	var pairs []attr.Pair
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&pairs); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	for i := range pairs {
		pairs[i].Value = jsonValue(pairs[i].Value)
	}

	if err := s.device.SetAttributes(pairs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// jsonValue turns decoded JSON numbers into int when integral
func jsonValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// handleMessages streams engine messages over a websocket until the client
// disconnects
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	// the read side only detects the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(StateResponse{State: s.device.State().String(), Mode: s.device.Mode().String()}); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
		"state":   s.device.State().String(),
	})
}
