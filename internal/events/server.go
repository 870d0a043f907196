package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/volume"
)

// Path is the websocket endpoint.
const Path = "/events"

// Event types carried in the envelope.
const (
	TypeStateInit     = "state_init"
	TypeModeActivated = "mode_activated"
	TypeVolumeChanged = "volume_changed"
	TypeHealthSample  = "health_sample"
)

// Envelope is the wire format of every frame.
type Envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Snapshot is sent to each subscriber on connect.
type Snapshot struct {
	Volume volume.State `json:"volume"`
	Modes  []string     `json:"modes"`
}

// SnapshotFunc supplies the connect-time snapshot.
type SnapshotFunc func() Snapshot

// Server serves the websocket stream and satisfies the agent event sink contract.
type Server struct {
	logger   *slog.Logger
	hub      *hub
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer builds a server. snapshot may be nil.
func NewServer(snapshot SnapshotFunc, logger *slog.Logger) *Server {
	logger = logging.OrDiscard(logger)
	return &Server{
		logger:   logger,
		hub:      newHub(logger),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler returns the HTTP mux exposing Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleEvents)
	return mux
}

// Run drives the hub until ctx ends. Handler requires Run to be active.
func (s *Server) Run(ctx context.Context) {
	s.hub.run(ctx)
}

// Serve listens on addr and serves the stream until ctx ends.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener until ctx ends.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.Run(hubCtx)

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	s.logger.Info("event stream listening", "addr", listener.Addr().String(), "path", Path)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve events: %w", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("event stream upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(s.hub, conn, r.RemoteAddr)
	if s.snapshot != nil {
		if msg, err := s.encode(TypeStateInit, s.snapshot()); err == nil {
			sub.send <- msg
		}
	}
	if !s.hub.join(sub) {
		_ = conn.Close()
		return
	}

	// The pumps outlive the request; the hub and socket errors end them.
	go sub.writePump()
	go sub.readPump()
}

// ModeActivated broadcasts a mode_activated event.
func (s *Server) ModeActivated(exec engine.Execution) {
	s.broadcast(TypeModeActivated, exec)
}

// VolumeChanged broadcasts a volume_changed event.
func (s *Server) VolumeChanged(state volume.State) {
	s.broadcast(TypeVolumeChanged, state)
}

// HealthSampled broadcasts a health_sample event.
func (s *Server) HealthSampled(sample health.Sample) {
	s.broadcast(TypeHealthSample, sample)
}

func (s *Server) broadcast(kind string, data any) {
	msg, err := s.encode(kind, data)
	if err != nil {
		s.logger.Warn("event encode failed", "type", kind, "error", err)
		return
	}
	s.hub.publish(msg)
}

func (s *Server) encode(kind string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Ts: s.now().UTC(), Data: raw})
}
