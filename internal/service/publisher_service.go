package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"
	pktNats "docchat-be/pkg/nats"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	pubSub    *gochannel.GoChannel
	topicName string
}

func NewPublisherService(pubSub *gochannel.GoChannel, topicName string) IPublisherService {
	return &publisherService{
		pubSub:    pubSub,
		topicName: topicName,
	}
}

func (s *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return s.pubSub.Publish(s.topicName, msg)
}

// publishSessionEvent puts a lifecycle event on the in-process bus and, when
// a NATS mirror is configured, forwards it there. Both paths are auxiliary:
// failures are logged, never returned to the request.
func publishSessionEvent(
	ctx context.Context,
	publisher IPublisherService,
	mirror *pktNats.Publisher,
	log logger.ILogger,
	evt events.Event,
) {
	wire := dto.SessionEventMessage{
		Type:       evt.EventType(),
		OccurredAt: evt.Timestamp(),
		Payload:    evt.Payload(),
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		log.Error("events", "failed to marshal session event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
		return
	}

	if err := publisher.Publish(ctx, payload); err != nil {
		log.Error("events", "failed to publish session event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}

	if mirror != nil {
		if err := mirror.Publish(ctx, evt); err != nil {
			log.Warn("events", "failed to mirror session event to nats", map[string]interface{}{
				"type":  evt.EventType(),
				"error": err.Error(),
			})
		}
	}
}
