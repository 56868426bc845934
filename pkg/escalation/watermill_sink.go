package escalation

import (
	"context"
	"encoding/json"
	"fmt"

	"support-chatbot-be/pkg/events"
	natspub "support-chatbot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	MetadataEventType = "event_type"
	MetadataMsgID     = "msg_id"
	MetadataKey       = "key"
)

// WatermillSink publishes tickets onto an in-process watermill topic. It is used
// when no NATS URL is configured.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{publisher: publisher, topic: topic}
}

func (s *WatermillSink) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventType, event.EventType())
	msg.Metadata.Set(MetadataMsgID, event.MessageID())
	msg.Metadata.Set(MetadataKey, event.Key())

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event to topic %s: %w", s.topic, err)
	}
	return nil
}

var (
	_ Sink = (*WatermillSink)(nil)
	_ Sink = (*natspub.Publisher)(nil)
)
