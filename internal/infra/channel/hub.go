package channel

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appanalysis "github.com/aydenden/companylens/internal/application/analysis"
	"github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/middleware"
)

const (
	writeTimeout = 10 * time.Second

	// sendBuffer bounds queued events per observer. A full buffer drops the
	// event for that observer: delivery is at-most-once, best-effort, and the
	// persisted session remains the source of truth via QUERY_STATUS.
	sendBuffer = 64
)

// Hub is the host side of the event channel. It accepts observer
// connections, broadcasts session lifecycle events to all of them, and
// dispatches inbound commands to the session manager. Hub implements
// analysis.Publisher.
type Hub struct {
	svc      *appanalysis.Service
	upgrader websocket.Upgrader

	mu        sync.Mutex
	observers map[*observerConn]struct{}
}

type observerConn struct {
	conn    *websocket.Conn
	send    chan []byte
	closing sync.Once
}

func (o *observerConn) close() {
	o.closing.Do(func() { close(o.send) })
}

// trySend queues a message without blocking. Slow observers lose events
// rather than stalling the broadcast.
func (o *observerConn) trySend(msg []byte) {
	select {
	case o.send <- msg:
	default:
	}
}

func NewHub(svc *appanalysis.Service) *Hub {
	return &Hub{
		svc: svc,
		upgrader: websocket.Upgrader{
			// observers are extension pages on another origin; the service
			// listens on loopback only
			CheckOrigin: func(*http.Request) bool { return true },
		},
		observers: make(map[*observerConn]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the observer's read loop until the
// connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("channel upgrade failed: %v", err)
		return
	}

	oc := &observerConn{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.observers[oc] = struct{}{}
	n := len(h.observers)
	h.mu.Unlock()
	log.Printf("observer connected (%d total)", n)

	go h.writeLoop(oc)
	h.readLoop(oc)
}

func (h *Hub) writeLoop(oc *observerConn) {
	for msg := range oc.send {
		oc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := oc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	oc.conn.Close()
}

func (h *Hub) readLoop(oc *observerConn) {
	defer h.drop(oc)
	for {
		_, data, err := oc.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.ack(oc, AckPayload{Command: "?", Error: "malformed command"})
			continue
		}
		h.dispatch(oc, cmd)
	}
}

func (h *Hub) drop(oc *observerConn) {
	h.mu.Lock()
	delete(h.observers, oc)
	n := len(h.observers)
	h.mu.Unlock()
	oc.close()
	log.Printf("observer disconnected (%d total)", n)
}

// dispatch runs one command and answers with an ack (or a STATUS event for
// queries). Errors are translated to ack payloads, never surfaced raw.
func (h *Hub) dispatch(oc *observerConn, cmd Command) {
	ctx := context.Background()
	switch cmd.Type {
	case CommandStart:
		var p StartPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil || p.CompanyID == "" {
			h.ack(oc, AckPayload{Command: cmd.Type, Error: "start requires company_id"})
			return
		}
		id, err := h.svc.Start(ctx, p.CompanyID, p.ImageIDs)
		if err != nil {
			h.ack(oc, AckPayload{Command: cmd.Type, Error: err.Error()})
			return
		}
		middleware.IncrementSessions()
		h.ack(oc, AckPayload{Command: cmd.Type, OK: true, SessionID: string(id)})

	case CommandCancel:
		if err := h.svc.Cancel(ctx); err != nil {
			h.ack(oc, AckPayload{Command: cmd.Type, Error: err.Error()})
			return
		}
		middleware.IncrementSessionsCancelled()
		h.ack(oc, AckPayload{Command: cmd.Type, OK: true})

	case CommandQueryStatus:
		sess, err := h.svc.Status(ctx)
		if err != nil {
			h.ack(oc, AckPayload{Command: cmd.Type, Error: err.Error()})
			return
		}
		if msg, err := marshalEvent(analysis.Event{
			Type:    analysis.EventStatus,
			Payload: analysis.StatusPayload{Session: sess},
		}); err == nil {
			oc.trySend(msg)
		}

	default:
		h.ack(oc, AckPayload{Command: cmd.Type, Error: "unknown command"})
	}
}

func (h *Hub) ack(oc *observerConn, p AckPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		return
	}
	msg, err := json.Marshal(Envelope{Type: TypeAck, Payload: body})
	if err != nil {
		return
	}
	oc.trySend(msg)
}

// Publish broadcasts a session lifecycle event to every connected observer.
func (h *Hub) Publish(ev analysis.Event) {
	switch ev.Type {
	case analysis.EventImageComplete:
		middleware.IncrementImagesAnalyzed()
	case analysis.EventAnalysisError:
		if p, ok := ev.Payload.(analysis.AnalysisErrorPayload); ok && p.Status == analysis.StatusError {
			middleware.IncrementSessionsFailed()
		}
	}
	msg, err := marshalEvent(ev)
	if err != nil {
		log.Printf("failed to marshal event %s: %v", ev.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for oc := range h.observers {
		oc.trySend(msg)
	}
}

// ObserverCount reports currently connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func marshalEvent(ev analysis.Event) ([]byte, error) {
	return json.Marshal(ev)
}
