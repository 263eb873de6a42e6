package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gator-chat/internal/engine"
	"gator-chat/internal/models"
	"gator-chat/internal/notify"
	"gator-chat/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/lithammer/shortuuid/v4"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 256
)

// Frame types
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameResult      = "result"
	FrameError       = "error"
)

// ClientFrame is what a client sends: subscribe carries a query, unsubscribe
// only the subscription id.
type ClientFrame struct {
	Type  string        `json:"type"`
	ID    string        `json:"id"`
	Query *engine.Query `json:"query,omitempty"`
}

// ServerFrame is a query result or an error for one subscription.
type ServerFrame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// ID names the connection in the subscription registry.
	ID string

	// Identity is nil for anonymous connections.
	Identity *models.Identity

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, identity *models.Identity) *Client {
	return &Client{
		Hub:      hub,
		ID:       shortuuid.New(),
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) userID() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.Subject
}

// enqueue drops the frame when the client is slow or gone.
func (c *Client) enqueue(frame ServerFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.Hub.logger.Error("Failed to encode frame", "connection", c.ID, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		c.Hub.logger.Warn("Send buffer full, frame dropped", "connection", c.ID, "user", c.userID())
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) deliver(update notify.Update) {
	if update.Err != nil {
		c.enqueue(errorFrame(update.SubscriptionID, update.Err))
		return
	}
	c.enqueue(ServerFrame{Type: FrameResult, ID: update.SubscriptionID, Data: update.Data})
}

func errorFrame(id string, err error) ServerFrame {
	code := utils.ErrDatabase
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	return ServerFrame{Type: FrameError, ID: id, Code: code, Error: err.Error()}
}

func (c *Client) handleFrame(raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.enqueue(errorFrame("", utils.NewValidationError("malformed frame")))
		return
	}
	if frame.ID == "" {
		c.enqueue(errorFrame("", utils.NewValidationError("frame id is required")))
		return
	}

	switch frame.Type {
	case FrameSubscribe:
		if frame.Query == nil {
			c.enqueue(errorFrame(frame.ID, utils.NewValidationError("query is required")))
			return
		}
		if err := c.Hub.subs.Subscribe(c.ID, frame.ID, c.Identity, *frame.Query, c.deliver); err != nil {
			c.enqueue(errorFrame(frame.ID, err))
		}
	case FrameUnsubscribe:
		c.Hub.subs.Unsubscribe(c.ID, frame.ID)
	default:
		c.enqueue(errorFrame(frame.ID, utils.NewValidationError("unknown frame type: "+frame.Type)))
	}
}

// ReadPump pumps frames from the websocket connection to the registry.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
		c.Hub.logger.Debug("WebSocket client read pump stopped", "connection", c.ID)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WebSocket read error", "connection", c.ID, "error", err)
			}
			break
		}
		c.handleFrame(message)
	}
}

// WritePump pumps frames from the registry to the websocket connection, one
// websocket message per frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("WebSocket write error", "connection", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
