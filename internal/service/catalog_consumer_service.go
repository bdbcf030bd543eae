package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/datatypes"

	"docchat-be/internal/dto"
	"docchat-be/internal/model"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/contract"
	"docchat-be/pkg/events"
	"docchat-be/pkg/store"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService projects session lifecycle events into the catalog
// database. It is the only writer of session_records and document_records,
// so the request path never waits on Postgres.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	catalog   contract.CatalogRepository
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	catalog contract.CatalogRepository,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		catalog:   catalog,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.SessionEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("catalog", "failed to unmarshal session event", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // a malformed payload never becomes valid; retrying loops forever
		return
	}

	if cs.catalog == nil {
		msg.Ack()
		return
	}

	var err error
	switch payload.Type {
	case events.TypeSessionReady:
		err = cs.projectReady(ctx, payload)
	case events.TypeQuestionAnswered:
		err = cs.catalog.IncrementQuestionCount(ctx, payloadString(payload.Payload, "session_id"))
	case events.TypeSessionClosed:
		err = cs.catalog.MarkSessionClosed(ctx,
			payloadString(payload.Payload, "session_id"),
			payloadString(payload.Payload, "reason"))
	case events.TypeIngestionFailed:
		err = cs.projectFailed(ctx, payload)
	default:
		msg.Ack()
		return
	}

	if err != nil {
		cs.logger.Error("catalog", "failed to project session event", map[string]interface{}{
			"type":  payload.Type,
			"error": err.Error(),
		})
		msg.Nack() // database errors are retriable
		return
	}
	msg.Ack()
}

func (cs *consumerService) projectReady(ctx context.Context, payload dto.SessionEventMessage) error {
	sessionID := payloadString(payload.Payload, "session_id")
	docs := payloadDocuments(payload.Payload)
	meta, _ := json.Marshal(payload.Payload)

	record := &model.SessionRecord{
		Id:            sessionID,
		State:         store.StateReady,
		DocumentCount: len(docs),
		PassageCount:  payloadInt(payload.Payload, "passage_count"),
		Metadata:      datatypes.JSON(meta),
	}
	if err := cs.catalog.SaveSession(ctx, record); err != nil {
		return err
	}

	records := make([]model.DocumentRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, model.DocumentRecord{
			SessionId: sessionID,
			Filename:  d.Filename,
			Pages:     d.Pages,
			Chunks:    d.Chunks,
			SizeBytes: d.SizeBytes,
		})
	}
	return cs.catalog.SaveDocuments(ctx, records)
}

// projectFailed records aborted ingestions. Failed sessions never reach the
// registry, so FAILED exists only as a catalog state.
func (cs *consumerService) projectFailed(ctx context.Context, payload dto.SessionEventMessage) error {
	meta, _ := json.Marshal(payload.Payload)
	return cs.catalog.SaveSession(ctx, &model.SessionRecord{
		Id:       payloadString(payload.Payload, "session_id"),
		State:    "FAILED",
		Metadata: datatypes.JSON(meta),
	})
}

func payloadString(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

// payloadInt tolerates the float64 that encoding/json decodes numbers to.
func payloadInt(payload map[string]interface{}, key string) int {
	f, _ := payload[key].(float64)
	return int(f)
}

func payloadDocuments(payload map[string]interface{}) []events.DocumentSummary {
	raw, err := json.Marshal(payload["documents"])
	if err != nil {
		return nil
	}
	var docs []events.DocumentSummary
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil
	}
	return docs
}
