package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const (
	clientSendBuffer = 256
	clientReadLimit  = 4096
	pingInterval     = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Client is one connected watcher. It receives every run until it
// subscribes to specific ones.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu         sync.RWMutex
	subscribeAll  bool
	subscriptions map[string]struct{}
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:            uuid.NewString(),
		conn:          conn,
		send:          make(chan []byte, clientSendBuffer),
		hub:           hub,
		subscribeAll:  true,
		subscriptions: make(map[string]struct{}),
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(clientReadLimit)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				c.hub.logger.Debug("watcher read error", "client", c.id, "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.SendError(c, "invalid message format")
		return
	}
	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.RunID)
	case "unsubscribe":
		c.unsubscribe(msg.RunID)
	default:
		c.hub.SendError(c, "unknown message type: "+msg.Type)
	}
}

// subscribe narrows delivery to the given runs; an empty id restores
// delivery of every run.
func (c *Client) subscribe(runID string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if runID == "" {
		c.subscribeAll = true
		clear(c.subscriptions)
		return
	}
	c.subscribeAll = false
	c.subscriptions[runID] = struct{}{}
}

func (c *Client) unsubscribe(runID string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subscriptions, runID)
}

// wantsRun reports whether messages of runID go to this client. Messages
// without a run go to everyone.
func (c *Client) wantsRun(runID string) bool {
	if runID == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if c.subscribeAll {
		return true
	}
	_, ok := c.subscriptions[runID]
	return ok
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(ctx, nil); err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		}
	}
}

// write sends msg, or a ping when msg is nil, bounded by writeTimeout.
func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if msg == nil {
		return c.conn.Ping(ctx)
	}
	return c.conn.Write(ctx, websocket.MessageText, msg)
}
