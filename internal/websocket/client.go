package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"

	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/service"
	"docchat-be/pkg/store"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
)

// Frame is the wire shape of every server-to-client message.
type Frame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

const (
	FrameSystem = "system"
	FrameAnswer = "answer"
	FrameError  = "error"
)

// Client pumps one bound session's conversation over its websocket
// connection. The session dies with the connection; there is no rebinding.
type Client struct {
	conn    *websocket.Conn
	session *store.Session
	chat    service.IChatService
	logger  logger.ILogger

	idleTimeout time.Duration
	send        chan []byte

	// closeReason is what readPump decided the teardown was, read by serve
	// after the pumps stop.
	closeReason string
}

func newClient(
	conn *websocket.Conn,
	sess *store.Session,
	chat service.IChatService,
	log logger.ILogger,
	idleTimeout time.Duration,
) *Client {
	return &Client{
		conn:        conn,
		session:     sess,
		chat:        chat,
		logger:      log,
		idleTimeout: idleTimeout,
		send:        make(chan []byte, 16),
		closeReason: "client disconnected",
	}
}

func (c *Client) enqueue(frameType, data string) {
	payload, err := json.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		// A client that stopped draining its socket loses frames rather
		// than wedging the read loop.
		c.logger.Warn("websocket", "dropping frame for slow client", map[string]interface{}{
			"session_id": c.session.ID,
			"type":       frameType,
		})
	}
}

// readPump consumes questions until the peer goes away or the idle deadline
// fires. Pongs keep the TCP path warm but are not user activity; only
// questions reset the idle clock.
func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error { return nil })

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.closeReason = "idle timeout"
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket", "connection dropped", map[string]interface{}{
					"session_id": c.session.ID,
					"error":      err.Error(),
				})
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		question := strings.TrimSpace(string(data))
		if question == "" {
			continue
		}

		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		answer, err := c.chat.Ask(ctx, c.session.ID, question)
		if err != nil {
			if terminal, reason := terminalError(err); terminal {
				c.closeReason = reason
				return
			}
			c.enqueue(FrameError, errorMessage(err))
			continue
		}
		c.enqueue(FrameAnswer, answer.Answer)
	}
}

// writePump owns all writes on the connection, including keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// terminalError reports whether the error means the session itself is gone
// and the connection should not outlive it.
func terminalError(err error) (bool, string) {
	switch {
	case errors.Is(err, store.ErrSessionClosed):
		return true, "session closed"
	case errors.Is(err, store.ErrSessionNotFound):
		return true, "session evicted"
	default:
		return false, ""
	}
}

// errorMessage turns an answer-path failure into the frame text a client
// sees. Internals stay in the logs.
func errorMessage(err error) string {
	var genFail *store.GenerationFailure
	var embedFail *store.EmbeddingFailure
	switch {
	case errors.As(err, &genFail):
		return "The language model could not produce an answer. Please try again."
	case errors.As(err, &embedFail):
		return "The question could not be processed right now. Please try again."
	default:
		return "Something went wrong answering that question. Please try again."
	}
}
