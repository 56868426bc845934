package nats

import (
	"context"
	"fmt"

	"support-chatbot-be/internal/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Message is what handlers see of a delivered JetStream message.
type Message struct {
	Subject      string
	EventType    string
	MsgID        string
	Data         []byte
	NumDelivered uint64
}

// MessageHandler processes one message. A nil error acks, anything else naks for redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// Subscribe registers a handler for a subject pattern on a durable consumer
// so no messages are lost between restarts.
func (s *Subscriber) Subscribe(ctx context.Context, stream, subject, durableName string, handler MessageHandler) (jetstream.ConsumeContext, error) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		m := Message{
			Subject:   msg.Subject(),
			EventType: msg.Headers().Get(HeaderEventType),
			MsgID:     msg.Headers().Get(jetstream.MsgIDHeader),
			Data:      msg.Data(),
		}
		if meta, err := msg.Metadata(); err == nil {
			m.NumDelivered = meta.NumDelivered
		}

		if err := handler(ctx, m); err != nil {
			s.logger.Error("CONSUMER", "Handler failed, message will be redelivered", map[string]interface{}{
				"subject": m.Subject,
				"msg_id":  m.MsgID,
				"error":   err.Error(),
			})
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	s.logger.Info("CONSUMER", "Subscribed", map[string]interface{}{
		"stream":  stream,
		"subject": subject,
		"durable": durableName,
	})
	return cc, nil
}

// Close closes the connection.
func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
