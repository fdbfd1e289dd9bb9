package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/attendance"
)

const (
	subscriberBuffer = 64
	heartbeatEvery   = 30 * time.Second
	writeWait        = 10 * time.Second
)

// Hub fans accepted scans out to websocket subscribers. Slow subscribers
// miss events rather than block the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan attendance.ScanEvent]struct{}
	log  logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{subs: map[chan attendance.ScanEvent]struct{}{}, log: log.WithComponent("live")}
}

func (h *Hub) Publish(event attendance.ScanEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// once the listener is done.
func (h *Hub) Subscribe() (<-chan attendance.ScanEvent, func()) {
	ch := make(chan attendance.ScanEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type message struct {
	Type  string                `json:"type"`
	Event *attendance.ScanEvent `json:"event,omitempty"`
}

// ServeWS streams scan events to one websocket client until it goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrade websocket")
	}
	defer conn.Close()

	events, cancel := h.Subscribe()
	defer cancel()

	if err = h.write(conn, message{Type: "connected"}); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-done:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err = h.write(conn, message{Type: "scan", Event: &event}); err != nil {
				return err
			}
		case <-ticker.C:
			if err = h.write(conn, message{Type: "heartbeat"}); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := conn.WriteJSON(msg); err != nil {
		return errors.Wrapf(err, "write %s message", msg.Type)
	}
	return nil
}
