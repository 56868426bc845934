package service

import (
	"context"
	"encoding/json"
	"time"

	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/pkg/escalation"
	"support-chatbot-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/patrickmn/go-cache"
)

// TicketHandoff receives each escalated ticket exactly once per consumer.
type TicketHandoff func(ctx context.Context, ticket events.TicketPayload) error

type IConsumerService interface {
	Consume(ctx context.Context) error
	Handle(ctx context.Context, msgID string, payload []byte) (duplicate bool, err error)
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	handoff    TicketHandoff
	seen       *cache.Cache
	logger     logger.ILogger
}

// NewConsumerService builds the ticket consumer. Delivery is at-least-once, so
// message ids are remembered for dedupeWindow and repeats are dropped.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	handoff TicketHandoff,
	dedupeWindow time.Duration,
	log logger.ILogger,
) IConsumerService {
	if dedupeWindow <= 0 {
		dedupeWindow = 10 * time.Minute
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		handoff:    handoff,
		seen:       cache.New(dedupeWindow, 2*dedupeWindow),
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
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
	msgID := msg.Metadata.Get(escalation.MetadataMsgID)
	if msgID == "" {
		msgID = msg.UUID
	}
	if _, err := cs.Handle(ctx, msgID, msg.Payload); err != nil {
		msg.Nack()
		return
	}
	msg.Ack()
}

// Handle processes one delivery. Malformed payloads are dropped without error
// since redelivery cannot fix them.
func (cs *consumerService) Handle(ctx context.Context, msgID string, payload []byte) (bool, error) {
	if msgID != "" {
		if _, found := cs.seen.Get(msgID); found {
			cs.logger.Debug("CONSUMER", "Duplicate ticket delivery dropped", map[string]interface{}{"msg_id": msgID})
			return true, nil
		}
	}

	var ticket events.TicketPayload
	if err := json.Unmarshal(payload, &ticket); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal ticket", map[string]interface{}{
			"msg_id": msgID,
			"error":  err.Error(),
		})
		return false, nil
	}

	if err := cs.handoff(ctx, ticket); err != nil {
		cs.logger.Error("CONSUMER", "Ticket handoff failed", map[string]interface{}{
			"msg_id":    msgID,
			"ticket_id": ticket.ID,
			"error":     err.Error(),
		})
		return false, err
	}

	if msgID != "" {
		cs.seen.SetDefault(msgID, struct{}{})
	}
	cs.logger.Info("CONSUMER", "Ticket handed off", map[string]interface{}{
		"msg_id":    msgID,
		"ticket_id": ticket.ID,
		"user_id":   ticket.UserID,
		"reason":    ticket.Reason,
	})
	return false, nil
}

// LogHandoff only logs the ticket. It stands in for a helpdesk integration.
func LogHandoff(log logger.ILogger) TicketHandoff {
	return func(_ context.Context, t events.TicketPayload) error {
		details := map[string]interface{}{
			"ticket_id": t.ID,
			"user_id":   t.UserID,
			"reason":    t.Reason,
			"message":   t.Message,
		}
		if t.Label != nil {
			details["label"] = *t.Label
		}
		log.Info("HANDOFF", "Escalated ticket received", details)
		return nil
	}
}
