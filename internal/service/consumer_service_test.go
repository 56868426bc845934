package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/pkg/escalation"
	"support-chatbot-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandoff struct {
	mu      sync.Mutex
	fail    int
	tickets []events.TicketPayload
}

func (h *recordingHandoff) handle(_ context.Context, t events.TicketPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail > 0 {
		h.fail--
		return errors.New("helpdesk down")
	}
	h.tickets = append(h.tickets, t)
	return nil
}

func (h *recordingHandoff) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tickets)
}

func TestConsumerService_HandleDropsDuplicates(t *testing.T) {
	h := &recordingHandoff{}
	cs := NewConsumerService(nil, "tickets", h.handle, time.Minute, logger.NewNopLogger())
	payload := []byte(`{"id":3,"user_id":"u-1","message":"help","escalated":true,"reason":"user_requested"}`)

	dup, err := cs.Handle(context.Background(), "ticket-3", payload)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = cs.Handle(context.Background(), "ticket-3", payload)
	require.NoError(t, err)
	assert.True(t, dup)

	require.Equal(t, 1, h.count())
	assert.Equal(t, uint64(3), h.tickets[0].ID)
	assert.Equal(t, "u-1", h.tickets[0].UserID)
}

func TestConsumerService_FailedHandoffIsRetried(t *testing.T) {
	h := &recordingHandoff{fail: 1}
	cs := NewConsumerService(nil, "tickets", h.handle, time.Minute, logger.NewNopLogger())
	payload := []byte(`{"id":4,"user_id":"u-1","escalated":true}`)

	_, err := cs.Handle(context.Background(), "ticket-4", payload)
	require.Error(t, err)

	dup, err := cs.Handle(context.Background(), "ticket-4", payload)
	require.NoError(t, err)
	assert.False(t, dup, "a failed delivery is not remembered")
	assert.Equal(t, 1, h.count())
}

func TestConsumerService_MalformedPayloadIsDropped(t *testing.T) {
	h := &recordingHandoff{}
	cs := NewConsumerService(nil, "tickets", h.handle, time.Minute, logger.NewNopLogger())

	dup, err := cs.Handle(context.Background(), "x", []byte("{not json"))
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Zero(t, h.count())
}

func TestConsumerService_ConsumesWatermillTopic(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	h := &recordingHandoff{}
	cs := NewConsumerService(pubSub, "tickets", h.handle, time.Minute, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cs.Consume(ctx))

	sink := escalation.NewWatermillSink(pubSub, "tickets")
	ticket := entity.EscalationTicket{Id: 9, UserId: "u-2", Message: "agent please", Escalated: true, Reason: entity.ReasonUserRequested}
	ev := escalation.NewTicketEvent(ticket)
	require.NoError(t, sink.Publish(ctx, ev))
	require.NoError(t, sink.Publish(ctx, ev))

	require.Eventually(t, func() bool { return h.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.count(), "redelivered event id is handed off once")
	assert.Equal(t, "agent please", h.tickets[0].Message)
}
