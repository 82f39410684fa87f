package websocket

import (
	"sync"
	"time"

	"notechat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 4096
	defaultSendBuffer     = 256
)

// Conn is the part of *websocket.Conn the pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Broker is what a connection needs from the hub.
type Broker interface {
	Register(userID int64, delivery Delivery)
	Unregister(userID int64)
	Join(userID, conversationID int64)
	Route(senderID, conversationID int64, content string)
}

type ClientOptions struct {
	MaxMessageSize int64
	SendBuffer     int
}

// Client is a middleman between the websocket connection and the hub. It is
// the hub's Delivery for one user for the lifetime of one connection.
type Client struct {
	ID     uuid.UUID
	UserID int64

	hub    Broker
	conn   Conn
	logger logger.ILogger

	maxMessageSize int64

	// Buffered channel of outbound messages. Never closed; done ends the writer.
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func NewClient(hub Broker, conn Conn, userID int64, opts ClientOptions, log logger.ILogger) *Client {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &Client{
		ID:             uuid.New(),
		UserID:         userID,
		hub:            hub,
		conn:           conn,
		logger:         log,
		maxMessageSize: opts.MaxMessageSize,
		send:           make(chan []byte, opts.SendBuffer),
		done:           make(chan struct{}),
	}
}

// Deliver queues payload for the writer without blocking. A full buffer
// drops the payload.
func (c *Client) Deliver(payload []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- payload:
	case <-c.done:
	default:
		c.logger.Warn("Client", "Send buffer full, dropping message", map[string]interface{}{
			"user_id":   c.UserID,
			"client_id": c.ID.String(),
		})
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// readPump pumps frames from the connection to the hub until the connection
// ends, then unregisters the user exactly once.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.UserID)
		c.stop()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	action, err := DecodeAction(data)
	if err != nil {
		c.logger.Debug("Client", "Dropping unrecognized frame", map[string]interface{}{
			"user_id": c.UserID,
			"error":   err.Error(),
		})
		return
	}

	switch a := action.(type) {
	case JoinAction:
		c.hub.Join(c.UserID, a.ConversationID)
	case SendAction:
		c.hub.Route(c.UserID, a.ConversationID, a.Content)
	}
}

func (c *Client) logReadError(err error) {
	details := map[string]interface{}{"user_id": c.UserID, "client_id": c.ID.String(), "error": err.Error()}
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Warn("Client", "Unexpected connection close", details)
	default:
		c.logger.Debug("Client", "Connection closed", details)
	}
}

// writePump pumps messages from the send buffer to the connection and keeps
// it alive with pings. It owns closing the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Client", "Write failed", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Client", "Ping failed", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
