// Package hub streams runs and their transcripts to websocket watchers.
package hub

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/dialogtest/internal/script"
	"github.com/user/dialogtest/internal/transcript"
)

const defaultBatchInterval = 100 * time.Millisecond

type Hub struct {
	clients      map[string]*Client
	register     chan *clientRegistration
	unregister   chan *Client
	broadcast    chan hubBroadcast
	token        string
	logger       *slog.Logger
	mu           sync.RWMutex
	runs         map[string]RunMessage
	runsMu       sync.RWMutex
	batcher      *Batcher
	batchEnabled bool
	done         chan struct{}
	doneOnce     sync.Once
}

type hubBroadcast struct {
	data  []byte
	runID string
}

type clientRegistration struct {
	client      *Client
	initialRuns []byte
}

func New(token string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *clientRegistration, 16),
		unregister:   make(chan *Client, 16),
		broadcast:    make(chan hubBroadcast, 256),
		token:        token,
		logger:       logger,
		runs:         make(map[string]RunMessage),
		batchEnabled: true,
		done:         make(chan struct{}),
	}
	h.batcher = NewBatcher(defaultBatchInterval, func(msg EntriesMessage) {
		h.send(msg.RunID, msg)
	})
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.doneOnce.Do(func() { close(h.done) })
			h.batcher.FlushAll()
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.client.id] = reg.client
			h.mu.Unlock()
			if reg.initialRuns != nil {
				select {
				case reg.client.send <- reg.initialRuns:
				default:
				}
			}
			go reg.client.writePump(ctx)
			go reg.client.readPump(ctx)
			h.logger.Info("watcher connected", "client", reg.client.id, "total", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("watcher disconnected", "client", client.id, "total", h.ClientCount())

		case b := <-h.broadcast:
			h.broadcastToClients(b)
		}
	}
}

func (h *Hub) broadcastToClients(b hubBroadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wantsRun(b.runID) {
			continue
		}
		select {
		case c.send <- b.data:
		default:
			h.logger.Warn("watcher send buffer full, dropping message", "client", c.id)
		}
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// authorized checks the token query parameter. An empty hub token
// disables authentication, matching the runs API.
func (h *Hub) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("token")), []byte(h.token)) == 1
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}

	client := newClient(conn, h)
	initialRuns, _ := json.Marshal(RunsMessage{Type: "runs", List: h.ActiveRuns()})

	select {
	case h.register <- &clientRegistration{client: client, initialRuns: initialRuns}:
	default:
		h.logger.Warn("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

// ActiveRuns lists the runs that have started and not finished, oldest
// first.
func (h *Hub) ActiveRuns() []RunMessage {
	h.runsMu.RLock()
	defer h.runsMu.RUnlock()
	list := make([]RunMessage, 0, len(h.runs))
	for _, r := range h.runs {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Ts == list[j].Ts {
			return list[i].RunID < list[j].RunID
		}
		return list[i].Ts < list[j].Ts
	})
	return list
}

func (h *Hub) send(runID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal hub message", "error", err)
		return
	}
	select {
	case h.broadcast <- hubBroadcast{data: data, runID: runID}:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "run", runID)
	}
}

// BroadcastEntry forwards one transcript entry of runID to watchers.
func (h *Hub) BroadcastEntry(runID string, e transcript.Entry) {
	msg := EntryMessage{
		Seq:       e.Seq,
		Direction: e.Direction.String(),
		Text:      e.Text,
		Ts:        e.Time.UnixMilli(),
	}
	if h.batchEnabled {
		h.batcher.Add(runID, msg)
		return
	}
	h.send(runID, EntriesMessage{Type: "entries", RunID: runID, Entries: []EntryMessage{msg}})
}

func (h *Hub) SendError(client *Client, message string) {
	data, err := json.Marshal(ErrorMessage{Type: "error", Message: message})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SetBatchEnabled(enabled bool) {
	h.batchEnabled = enabled
}

func runMessage(res *script.Result) RunMessage {
	return RunMessage{
		Type:     "run",
		RunID:    res.RunID,
		Script:   res.Script,
		Entry:    res.Entry,
		Status:   string(res.Status),
		ExitCode: res.ExitCode,
		Failure:  res.Failure,
		Ts:       time.Now().UnixMilli(),
	}
}

// RunStarted announces the run and returns a sink that streams its
// transcript.
func (h *Hub) RunStarted(_ context.Context, res *script.Result) (transcript.Sink, error) {
	msg := runMessage(res)
	h.runsMu.Lock()
	h.runs[res.RunID] = msg
	h.runsMu.Unlock()
	h.send(res.RunID, msg)

	runID := res.RunID
	return transcript.SinkFunc(func(e transcript.Entry) {
		h.BroadcastEntry(runID, e)
	}), nil
}

// RunFinished flushes the run's pending entries and announces its outcome.
func (h *Hub) RunFinished(_ context.Context, res *script.Result) error {
	h.batcher.Flush(res.RunID)
	h.runsMu.Lock()
	delete(h.runs, res.RunID)
	h.runsMu.Unlock()
	h.send(res.RunID, runMessage(res))
	return nil
}
