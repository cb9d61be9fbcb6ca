package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/netpulse/internal/metrics"
	"github.com/jpalmerr/netpulse/internal/store"
	"github.com/jpalmerr/netpulse/visibility"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE or
	// websocket write. Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// maxVisibilityMessage caps a single message on the visibility socket.
	maxVisibilityMessage = 512

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "NetPulse"
)

// PageTracker records the visibility reported by connected dashboard pages.
// [*visibility.Clients] implements it.
type PageTracker interface {
	Connect(id string)
	Report(id string, s visibility.State) error
	Disconnect(id string)
	Pages() int
	State() visibility.State
}

// Server handles HTTP requests for the netpulse API.
//
// Routes:
//   - GET /api/state: all widget snapshots as JSON (?widget=NAME for one)
//   - GET /api/info: board title and widget list
//   - GET /api/sse: Server-Sent Events stream of snapshot updates
//   - GET /api/visibility: websocket on which pages report visibility
//   - GET /metrics: Prometheus metrics
//   - GET /healthz: liveness probe
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store  store.Store
	port   int
	title  string
	pages  PageTracker
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the widget snapshots
//   - port: TCP port to listen on (0 picks a free port)
//   - title: Board title (defaults to "NetPulse" if empty)
//   - pages: Visibility tracker; nil disables /api/visibility
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, port int, title string, pages PageTracker, logger *slog.Logger) *Server {
	if title == "" {
		title = defaultTitle
	}
	return &Server{
		store:  st,
		port:   port,
		title:  title,
		pages:  pages,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are commonly served from a different origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/visibility", s.handleVisibility)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

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

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context,
		// so long-lived SSE and websocket handlers end on shutdown.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleState returns the current snapshots as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body any
	if name := r.URL.Query().Get("widget"); name != "" {
		snap, ok := s.store.Get(name)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown widget %q", name), http.StatusNotFound)
			return
		}
		body = snap
	} else {
		body = s.store.GetAll()
	}

	writeJSON(w, body, s.logger)
}

type widgetInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
}

type boardInfo struct {
	Title   string       `json:"title"`
	Widgets []widgetInfo `json:"widgets"`
	Pages   int          `json:"pages"`
	Visible bool         `json:"visible"`
}

// handleInfo returns board metadata for dashboard clients.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snaps := s.store.GetAll()
	info := boardInfo{
		Title:   s.title,
		Widgets: make([]widgetInfo, 0, len(snaps)),
		Visible: true,
	}
	for _, snap := range snaps {
		info.Widgets = append(info.Widgets, widgetInfo{
			Name:     snap.Name,
			Kind:     snap.Kind,
			Resource: snap.Resource,
		})
	}
	if s.pages != nil {
		info.Pages = s.pages.Pages()
		info.Visible = s.pages.State() == visibility.Visible
	}

	writeJSON(w, info, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleSSE streams snapshot updates via Server-Sent Events.
//
// Every write carries a deadline so a slow or vanished client cannot pin
// the handler goroutine.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
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

	for _, snap := range s.store.GetAll() {
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// visibilityMessage is what a page sends. A bare "visible" or "hidden"
// text frame is accepted too.
type visibilityMessage struct {
	State string `json:"state"`
}

// visibilityAck answers every page message.
type visibilityAck struct {
	Page      string `json:"page"`
	State     string `json:"state,omitempty"`
	Aggregate string `json:"aggregate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleVisibility upgrades to a websocket and feeds the page's visibility
// reports into the tracker. A new page starts hidden; closing the socket
// counts as hidden.
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Warn("visibility upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("page", id)

	s.pages.Connect(id)
	metrics.SetConnectedPages(s.pages.Pages())
	logger.Debug("page connected")

	done := make(chan struct{})
	defer func() {
		close(done)
		_ = conn.Close()
		s.pages.Disconnect(id)
		metrics.SetConnectedPages(s.pages.Pages())
		logger.Debug("page disconnected")
	}()

	// a hijacked connection is not closed by Shutdown
	go func() {
		select {
		case <-r.Context().Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	conn.SetReadLimit(maxVisibilityMessage)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("visibility socket closed", "error", err)
			}
			return
		}

		ack := visibilityAck{Page: id}
		state, err := parseVisibilityMessage(raw)
		if err == nil {
			err = s.pages.Report(id, state)
		}
		if err != nil {
			ack.Error = err.Error()
		} else {
			ack.State = state.String()
			ack.Aggregate = s.pages.State().String()
			logger.Debug("page reported visibility", "visibility", ack.State, "aggregate", ack.Aggregate)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
	}
}

// parseVisibilityMessage accepts {"state":"visible"} or a bare state name.
func parseVisibilityMessage(raw []byte) (visibility.State, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "{") {
		var msg visibilityMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return visibility.Hidden, fmt.Errorf("invalid visibility message: %w", err)
		}
		text = msg.State
	}
	return visibility.ParseState(text)
}

func writeJSON(w http.ResponseWriter, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
