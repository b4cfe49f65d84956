package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

type FrameType string

const (
	FrameTypeEvent    FrameType = "event"
	FrameTypeRequest  FrameType = "request"
	FrameTypeResponse FrameType = "response"
)

// Frame is the websocket envelope. Server events carry Kind and Payload;
// client requests carry ID, Method and Params.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Payload any             `json:"payload,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RequestHandler serves a request frame sent by the client with clientID.
type RequestHandler func(clientID string, params json.RawMessage) error

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	// seen orders clients by their last join or request.
	seen uint64
}

// Hub fans server events out to every connected browser and routes browser
// requests to registered handlers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	handlers map[string]RequestHandler
	onLeave  []func(clientID string)
	clock    uint64
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*client),
		handlers: make(map[string]RequestHandler),
	}
}

func (h *Hub) Handle(method string, handler RequestHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[method] = handler
}

// OnLeave registers fn to run each time a client disconnects.
func (h *Hub) OnLeave(fn func(clientID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLeave = append(h.onLeave, fn)
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(kind string, payload any) {
	data, err := json.Marshal(Frame{Type: FrameTypeEvent, Kind: kind, Payload: payload})
	if err != nil {
		slog.Error("marshal event frame", "kind", kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Debug("ws client too slow, dropping frame", "kind", kind)
		}
	}
}

// Send pushes an event to one client. It reports false when the client is
// gone or too slow to take the frame.
func (h *Hub) Send(clientID, kind string, payload any) bool {
	data, err := json.Marshal(Frame{Type: FrameTypeEvent, Kind: kind, Payload: payload})
	if err != nil {
		slog.Error("marshal event frame", "kind", kind, "error", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Debug("ws client too slow, dropping frame", "kind", kind, "client", clientID)
		return false
	}
}

// Latest returns the client that most recently connected or sent a request.
func (h *Hub) Latest() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var latest *client
	for _, c := range h.clients {
		if latest == nil || c.seen > latest.seen {
			latest = c
		}
	}
	if latest == nil {
		return "", false
	}
	return latest.id, true
}

func (h *Hub) touch(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock++
	c.seen = h.clock
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.touch(c)
	slog.Info("ws client connected", "client", c.id, "clients", count)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	count := len(h.clients)
	leaves := append([]func(string){}, h.onLeave...)
	h.mu.Unlock()

	slog.Info("ws client disconnected", "client", c.id, "clients", count)
	for _, fn := range leaves {
		fn(c.id)
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, 64), hub: h}
	h.register(c)

	ctx := r.Context()
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, id)
	}
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}
		if frame.Type != FrameTypeRequest {
			slog.Debug("ws unknown frame type", "type", frame.Type)
			continue
		}
		c.hub.touch(c)
		c.reply(frame.ID, c.hub.dispatch(c.id, frame))
	}
}

func (c *client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) dispatch(clientID string, frame Frame) error {
	h.mu.RLock()
	handler, ok := h.handlers[frame.Method]
	h.mu.RUnlock()
	if !ok {
		return errUnknownMethod(frame.Method)
	}
	return handler(clientID, frame.Params)
}

func (c *client) reply(id string, err error) {
	if id == "" {
		return
	}
	frame := Frame{Type: FrameTypeResponse, ID: id, OK: err == nil}
	if err != nil {
		frame.Error = err.Error()
	}
	data, marshalErr := json.Marshal(frame)
	if marshalErr != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

type errUnknownMethod string

func (e errUnknownMethod) Error() string {
	return "unknown method: " + string(e)
}
