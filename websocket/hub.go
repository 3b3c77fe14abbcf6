package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/marketplace_booking/notifications"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("user has no open websocket")

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type pushFrame struct {
	Type string                `json:"type"`
	Data notifications.Message `json:"data"`
}

// writeWait bounds a single push so one stalled client cannot hold up the
// queue processor.
const writeWait = 10 * time.Second

type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

// peer serialises writes to one connection.
type peer struct {
	mu   sync.Mutex
	conn Conn
}

// Hub tracks one live connection per user and pushes queue notifications to
// it. It is a notifications.Deliverer.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu      sync.Mutex
	clients map[uuid.UUID]*peer
	done    chan struct{}
	stop    sync.Once
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*peer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves Register and Unregister until ctx is done, then closes every
// open connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) shutdown() {
	h.stop.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for user, p := range h.clients {
		p.conn.Close()
		delete(h.clients, user)
	}
}

// Join registers c and reports false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters c; after shutdown it returns at once.
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[c.UserID]; ok && old.conn != c.Conn {
		old.conn.Close()
	}
	h.clients[c.UserID] = &peer{conn: c.Conn}
	h.log.Debug("client registered", zap.Stringer("user_id", c.UserID))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.clients[c.UserID]; ok && p.conn == c.Conn {
		delete(h.clients, c.UserID)
		h.log.Debug("client unregistered", zap.Stringer("user_id", c.UserID))
	}
}

func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Deliver(_ context.Context, userID uuid.UUID, msg notifications.Message) error {
	h.mu.Lock()
	p, ok := h.clients[userID]
	h.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}

	p.mu.Lock()
	err := p.write(pushFrame{Type: "notification", Data: msg})
	p.mu.Unlock()
	if err == nil {
		return nil
	}

	p.conn.Close()
	h.mu.Lock()
	if h.clients[userID] == p {
		delete(h.clients, userID)
	}
	h.mu.Unlock()
	return fmt.Errorf("push to %s: %w", userID, err)
}

func (p *peer) write(v interface{}) error {
	if d, ok := p.conn.(deadlineSetter); ok {
		if err := d.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
	}
	return p.conn.WriteJSON(v)
}
