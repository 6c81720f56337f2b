package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultMaxReconnects  = 5
)

// ErrDisconnected is the terminal state surfaced after reconnection attempts
// are exhausted.
var ErrDisconnected = errors.New("channel disconnected")

// Handler receives the raw payload of one typed message.
type Handler func(payload json.RawMessage)

// Observer is the UI-side end of the channel. It registers typed handlers,
// sends commands, and reconnects with a fixed delay when the host drops the
// connection (for example across a host restart), giving up after a bounded
// number of attempts.
type Observer struct {
	url            string
	ReconnectDelay time.Duration
	MaxReconnects  int

	mu           sync.Mutex
	conn         *websocket.Conn
	handlers     map[string]Handler
	onDisconnect func(error)
	closed       bool
}

func NewObserver(url string) *Observer {
	return &Observer{
		url:            url,
		ReconnectDelay: DefaultReconnectDelay,
		MaxReconnects:  DefaultMaxReconnects,
		handlers:       make(map[string]Handler),
	}
}

// On registers the handler for one message type (an event type or TypeAck).
// Handlers must be registered before Connect.
func (o *Observer) On(msgType string, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[msgType] = h
}

// OnDisconnect registers the callback invoked exactly once when the channel
// reaches its terminal disconnected state.
func (o *Observer) OnDisconnect(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDisconnect = fn
}

// Connect dials the host and starts the read loop. Returns an error when the
// initial dial fails; later drops are handled by the reconnect policy.
func (o *Observer) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, o.url, nil)
	if err != nil {
		return fmt.Errorf("channel dial failed: %w", err)
	}
	o.mu.Lock()
	o.conn = conn
	o.mu.Unlock()

	go o.readLoop()
	return nil
}

func (o *Observer) readLoop() {
	for {
		o.mu.Lock()
		conn := o.conn
		o.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if o.isClosed() {
				return
			}
			if !o.reconnect() {
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		o.mu.Lock()
		h := o.handlers[env.Type]
		o.mu.Unlock()
		if h != nil {
			h(env.Payload)
		}
	}
}

// reconnect retries the dial with a fixed delay. Reports whether the channel
// is live again; on exhaustion it surfaces the terminal disconnected state.
func (o *Observer) reconnect() bool {
	var lastErr error = ErrDisconnected
	for i := 0; i < o.MaxReconnects; i++ {
		time.Sleep(o.ReconnectDelay)
		if o.isClosed() {
			return false
		}
		conn, _, err := websocket.DefaultDialer.Dial(o.url, nil)
		if err != nil {
			lastErr = err
			log.Printf("channel reconnect %d/%d failed: %v", i+1, o.MaxReconnects, err)
			continue
		}
		o.mu.Lock()
		o.conn = conn
		o.mu.Unlock()
		log.Printf("channel reconnected")
		return true
	}

	o.mu.Lock()
	fn := o.onDisconnect
	o.conn = nil
	o.mu.Unlock()
	if fn != nil {
		fn(fmt.Errorf("%w: %v", ErrDisconnected, lastErr))
	}
	return false
}

func (o *Observer) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Send writes one command to the host.
func (o *Observer) Send(cmd Command) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn == nil {
		return ErrDisconnected
	}
	return o.conn.WriteJSON(cmd)
}

// Start sends a START command for the company.
func (o *Observer) Start(companyID string, imageIDs []string) error {
	body, err := json.Marshal(StartPayload{CompanyID: companyID, ImageIDs: imageIDs})
	if err != nil {
		return err
	}
	return o.Send(Command{Type: CommandStart, Payload: body})
}

// Cancel sends a CANCEL command.
func (o *Observer) Cancel() error {
	return o.Send(Command{Type: CommandCancel})
}

// QueryStatus asks the host to push the current session snapshot; the reply
// arrives through the STATUS handler.
func (o *Observer) QueryStatus() error {
	return o.Send(Command{Type: CommandQueryStatus})
}

// Close tears the channel down without triggering reconnection.
func (o *Observer) Close() error {
	o.mu.Lock()
	o.closed = true
	conn := o.conn
	o.conn = nil
	o.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
