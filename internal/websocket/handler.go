package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"docchat-be/internal/constant"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/service"
	"docchat-be/pkg/store"
)

// Handler upgrades session chat connections. A session accepts exactly one
// connection; closing it closes the session.
type Handler struct {
	registry    *memory.SessionRegistry
	chat        service.IChatService
	logger      logger.ILogger
	idleTimeout time.Duration
}

func NewHandler(
	registry *memory.SessionRegistry,
	chat service.IChatService,
	log logger.ILogger,
	idleTimeout time.Duration,
) *Handler {
	return &Handler{
		registry:    registry,
		chat:        chat,
		logger:      log,
		idleTimeout: idleTimeout,
	}
}

func (h *Handler) ServeWs(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.serve(conn, sessionID)
	})(c)
}

func (h *Handler) serve(conn *websocket.Conn, sessionID string) {
	defer conn.Close()

	sess, err := h.registry.Get(sessionID)
	if err != nil {
		h.reject(conn, constant.CloseReasonNotFound)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Binding hands the session's cancel to its lifecycle: Close aborts any
	// in-flight answer.
	if err := sess.Bind(cancel); err != nil {
		h.reject(conn, bindRejection(err))
		return
	}

	h.logger.Info("websocket", "session bound", map[string]interface{}{
		"session_id": sessionID,
	})

	client := newClient(conn, sess, h.chat, h.logger, h.idleTimeout)
	client.enqueue(FrameSystem, constant.SessionReadyMessage)

	go client.writePump()
	client.readPump(ctx)

	h.chat.CloseSession(context.Background(), sess, client.closeReason)
	h.logger.Info("websocket", "session unbound", map[string]interface{}{
		"session_id": sessionID,
		"reason":     client.closeReason,
	})
}

// reject closes the handshake-complete connection with a policy violation
// before any pump starts.
func (h *Handler) reject(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func bindRejection(err error) string {
	switch {
	case errors.Is(err, store.ErrSessionAlreadyBound):
		return constant.CloseReasonAlreadyBound
	case errors.Is(err, store.ErrSessionClosed):
		return constant.CloseReasonClosed
	default:
		return constant.CloseReasonNotReady
	}
}

// RegisterRoutes mounts the chat socket on the session resource.
func (h *Handler) RegisterRoutes(router fiber.Router) {
	router.Get("/sessions/:id/ws", h.ServeWs)
}
