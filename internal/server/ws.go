package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quill/internal/logging"
	"quill/internal/tasks"
)

const subscriberBuffer = 16

// Hub fans task snapshots out to WebSocket subscribers. Each task id has at
// most one subscriber; a reconnect replaces the previous connection. The
// hub implements tasks.Observer so every registry mutation is pushed as it
// happens.
type Hub struct {
	mu        sync.Mutex
	clients   map[string]*wsClient
	keepalive time.Duration
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type wsClient struct {
	taskID string
	conn   *websocket.Conn
	send   chan any
	closed chan struct{}
	once   sync.Once
}

// NewHub builds an empty hub. keepalive is the idle interval after which a
// {"ping": true} frame is written.
func NewHub(keepalive time.Duration, logger *slog.Logger) *Hub {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &Hub{
		clients:   make(map[string]*wsClient),
		keepalive: keepalive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The daemon binds to loopback; cross-origin browser pages on
			// the same host are legitimate clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logging.NewComponentLogger(logger, "ws"),
	}
}

// TaskUpdated implements tasks.Observer.
func (h *Hub) TaskUpdated(task *tasks.Task) {
	h.mu.Lock()
	client := h.clients[task.ID]
	h.mu.Unlock()
	if client == nil {
		return
	}

	select {
	case client.send <- task:
	default:
		// Subscriber cannot keep up; drop it rather than block the registry.
		h.drop(client)
	}
}

// Subscribe upgrades the request and attaches the connection to the task
// id, replacing any previous subscriber. The client is registered before
// snapshot runs, so a mutation landing during the handshake is never lost:
// it either reaches the already-registered channel or is reflected in the
// snapshot itself. A duplicate frame is harmless.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, taskID string, snapshot func() *tasks.Task) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		taskID: taskID,
		conn:   conn,
		send:   make(chan any, subscriberBuffer),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	previous := h.clients[taskID]
	h.clients[taskID] = client
	h.mu.Unlock()
	if previous != nil {
		previous.close()
	}

	if snapshot != nil {
		if task := snapshot(); task != nil {
			select {
			case client.send <- task:
			default:
			}
		}
	}

	h.logger.Debug("subscriber connected", logging.String(logging.FieldTaskID, taskID))
	go h.writeLoop(client)
	go h.readLoop(client)
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*wsClient)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}

// writeLoop serializes all writes for one connection. Any write failure
// silently deregisters the subscriber.
func (h *Hub) writeLoop(client *wsClient) {
	idle := time.NewTimer(h.keepalive)
	defer idle.Stop()

	for {
		select {
		case <-client.closed:
			return
		case payload := <-client.send:
			if err := client.conn.WriteJSON(payload); err != nil {
				h.drop(client)
				return
			}
			resetTimer(idle, h.keepalive)
		case <-idle.C:
			if err := client.conn.WriteJSON(map[string]bool{"ping": true}); err != nil {
				h.drop(client)
				return
			}
			idle.Reset(h.keepalive)
		}
	}
}

// readLoop drains inbound frames so closes are noticed promptly.
func (h *Hub) readLoop(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	if h.clients[client.taskID] == client {
		delete(h.clients, client.taskID)
	}
	h.mu.Unlock()

	client.close()
	h.logger.Debug("subscriber disconnected", logging.String(logging.FieldTaskID, client.taskID))
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
