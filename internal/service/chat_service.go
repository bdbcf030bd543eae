package service

import (
	"context"
	"time"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/memory"
	"docchat-be/pkg/events"
	pktNats "docchat-be/pkg/nats"
	"docchat-be/pkg/rag/responder"
	"docchat-be/pkg/store"
)

type IChatService interface {
	// Ask answers one question against a session's documents. Any question,
	// REST or websocket, lands here.
	Ask(ctx context.Context, sessionID, question string) (*dto.AskResponse, error)

	// Status reports a session's lifecycle state without touching its idle
	// clock.
	Status(ctx context.Context, sessionID string) (*dto.SessionStatusResponse, error)

	// CloseSession tears a session down and announces it. Safe to call on an
	// already-closed session.
	CloseSession(ctx context.Context, sess *store.Session, reason string)

	// NotifyEvicted announces a session the registry already closed by idle
	// eviction.
	NotifyEvicted(sess *store.Session)
}

type chatService struct {
	registry  *memory.SessionRegistry
	responder *responder.Responder
	publisher IPublisherService
	mirror    *pktNats.Publisher
	logger    logger.ILogger
}

func NewChatService(
	registry *memory.SessionRegistry,
	rsp *responder.Responder,
	publisher IPublisherService,
	mirror *pktNats.Publisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		registry:  registry,
		responder: rsp,
		publisher: publisher,
		mirror:    mirror,
		logger:    log,
	}
}

func (s *chatService) Ask(ctx context.Context, sessionID, question string) (*dto.AskResponse, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	// A question is activity; reset the idle clock before the possibly slow
	// answer pipeline runs.
	s.registry.Touch(sessionID)

	started := time.Now()
	answer, err := s.responder.Answer(ctx, sess, question)
	if err != nil {
		s.logger.Warn("chat", "question failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, err
	}

	durationMs := time.Since(started).Milliseconds()
	publishSessionEvent(ctx, s.publisher, s.mirror, s.logger,
		events.NewQuestionAnswered(sessionID, durationMs))
	s.logger.Info("chat", "question answered", map[string]interface{}{
		"session_id":  sessionID,
		"duration_ms": durationMs,
	})

	return &dto.AskResponse{Answer: answer}, nil
}

func (s *chatService) Status(ctx context.Context, sessionID string) (*dto.SessionStatusResponse, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	return &dto.SessionStatusResponse{
		SessionId:     sess.ID,
		State:         sess.State(),
		Documents:     sess.Documents(),
		PassageCount:  sess.PassageCount(),
		QuestionCount: sess.QuestionCount(),
		CreatedAt:     sess.CreatedAt,
	}, nil
}

func (s *chatService) CloseSession(ctx context.Context, sess *store.Session, reason string) {
	if !sess.Close() {
		return
	}
	s.registry.Delete(sess.ID)

	publishSessionEvent(ctx, s.publisher, s.mirror, s.logger,
		events.NewSessionClosed(sess.ID, reason, sess.QuestionCount()))
	s.logger.Info("chat", "session closed", map[string]interface{}{
		"session_id": sess.ID,
		"reason":     reason,
		"questions":  sess.QuestionCount(),
	})
}

func (s *chatService) NotifyEvicted(sess *store.Session) {
	publishSessionEvent(context.Background(), s.publisher, s.mirror, s.logger,
		events.NewSessionClosed(sess.ID, "idle timeout", sess.QuestionCount()))
	s.logger.Info("chat", "session evicted after idle timeout", map[string]interface{}{
		"session_id": sess.ID,
		"questions":  sess.QuestionCount(),
	})
}
