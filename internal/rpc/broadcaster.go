package rpc

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Broadcaster pushes resource/group state changes to connected dashboard
// clients over WebSocket, satisfying engine.Broadcaster. Best effort: a
// client whose send buffer is full simply misses an update rather than
// blocking the engine goroutine that raised it. Each connection gets its
// own send channel, a periodic ping, and a write deadline.
type Broadcaster struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type stateEvent struct {
	Type  string `json:"type"` // "resource_state" | "group_state"
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
	State string `json:"state"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan stateEvent
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	sendBuffer   = 64
)

// NewBroadcaster creates an empty Broadcaster. Its WebSocket upgrade
// accepts any Origin.
func NewBroadcaster(log *zap.SugaredLogger) *Broadcaster {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Broadcaster{
		log:     log,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades a request to a WebSocket feed of state events.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan stateEvent, sendBuffer)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	go b.writePump(c)
	go b.readPump(c)
}

func (b *Broadcaster) readPump(c *wsClient) {
	defer b.drop(c)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *Broadcaster) drop(c *wsClient) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) publish(ev stateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- ev:
		default:
			b.log.Warnw("dashboard client send buffer full, dropping update", "type", ev.Type, "name", ev.Name)
		}
	}
}

// BroadcastResourceState satisfies engine.Broadcaster.
func (b *Broadcaster) BroadcastResourceState(name, group, state string) {
	b.publish(stateEvent{Type: "resource_state", Name: name, Group: group, State: state})
}

// BroadcastGroupState satisfies engine.Broadcaster.
func (b *Broadcaster) BroadcastGroupState(name, state string) {
	b.publish(stateEvent{Type: "group_state", Name: name, State: state})
}
