// Package events streams agent events to websocket subscribers as JSON envelopes.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	defaultSendBuf      = 32
	defaultBroadcastBuf = 128
)

// hub tracks subscribers. A subscriber whose send queue is full is disconnected.
type hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *subscriber
	unregister chan *subscriber

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}

	done chan struct{}
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:      logger,
		broadcast:   make(chan []byte, defaultBroadcastBuf),
		register:    make(chan *subscriber, 16),
		unregister:  make(chan *subscriber, 16),
		subscribers: make(map[*subscriber]struct{}),
		done:        make(chan struct{}),
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s] = struct{}{}
			n := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("event subscriber registered", "remote_addr", s.remoteAddr, "subscribers", n)

		case s := <-h.unregister:
			h.remove(s, "unregister")

		case msg := <-h.broadcast:
			var slow []*subscriber
			h.mu.Lock()
			for s := range h.subscribers {
				select {
				case s.send <- msg:
				default:
					slow = append(slow, s)
				}
			}
			h.mu.Unlock()

			for _, s := range slow {
				h.remove(s, "slow_subscriber")
			}
		}
	}
}

// join registers s unless the hub has stopped.
func (h *hub) join(s *subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters s unless the hub has stopped.
func (h *hub) leave(s *subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers {
		s.close()
		delete(h.subscribers, s)
	}
}

func (h *hub) remove(s *subscriber, reason string) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	delete(h.subscribers, s)
	n := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		s.close()
		h.logger.Debug("event subscriber disconnected", "remote_addr", s.remoteAddr, "reason", reason, "subscribers", n)
	}
}

// publish enqueues a serialized frame and drops it when the hub queue is full.
func (h *hub) publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("event hub queue full, dropping message", "bytes", len(msg))
	}
}

type subscriber struct {
	hub        *hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	closeOnce sync.Once
}

func newSubscriber(h *hub, conn *websocket.Conn, remoteAddr string) *subscriber {
	return &subscriber{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, defaultSendBuf),
		remoteAddr: remoteAddr,
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// writePump drains the send queue and pings. It exits on write error or when send closes.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logExit("write", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards inbound frames to service control messages and detect disconnects.
func (s *subscriber) readPump() {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.logExit("read", err)
			s.hub.leave(s)
			return
		}
	}
}

func (s *subscriber) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.hub.logger.Debug("event subscriber closed", "remote_addr", s.remoteAddr, "op", op, "code", ce.Code)
		return
	}
	s.hub.logger.Debug("event subscriber pump exiting", "remote_addr", s.remoteAddr, "op", op, "error", err)
}
