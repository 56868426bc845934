package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/service"
	"support-chatbot-be/pkg/escalation"
	"support-chatbot-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handoffs struct {
	mu  sync.Mutex
	ids []uint64
}

func (h *handoffs) record(_ context.Context, t events.TicketPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, t.ID)
	return nil
}

func (h *handoffs) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}

func TestContainer_BackgroundWorkersOutliveStartContext(t *testing.T) {
	log := logger.NewNopLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	h := &handoffs{}

	c := &Container{
		Logger: log,
		Publisher: escalation.NewPublisher(escalation.NewWatermillSink(pubSub, ticketTopic), escalation.PublisherConfig{
			Workers:         1,
			QueueSize:       8,
			Timeout:         time.Second,
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
		}, log, nil),
		ConsumerService: service.NewConsumerService(pubSub, ticketTopic, h.record, time.Minute, log),
		closers:         []func() error{pubSub.Close},
	}

	sigCtx, sigCancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(sigCtx))
	sigCancel()

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, c.Publisher.Enqueue(entity.EscalationTicket{
			Id: i, UserId: "u-1", Message: "help", Escalated: true, Reason: entity.ReasonLowConfidence,
		}))
	}

	require.Eventually(t, func() bool { return h.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, c.Shutdown(ctx))
}
