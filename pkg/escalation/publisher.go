package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/pkg/metrics"
	"support-chatbot-be/pkg/events"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPublishFailed   = errors.New("ticket publish failed")
	ErrQueueFull       = errors.New("ticket publish queue full")
	ErrPublisherClosed = errors.New("ticket publisher closed")
)

// Sink is the downstream queue client.
type Sink interface {
	Publish(ctx context.Context, event events.Event) error
}

type PublisherConfig struct {
	Workers         int
	QueueSize       int
	Timeout         time.Duration // per attempt
	MaxAttempts     uint
	InitialInterval time.Duration
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 200 * time.Millisecond
	}
	return c
}

// Publisher hands recorded tickets to a bounded queue drained by a small worker
// pool. Callers never wait on the sink. Failures go to the publish log; the
// ledger row remains the durable record.
type Publisher struct {
	sink       Sink
	cfg        PublisherConfig
	publishLog logger.ILogger
	metrics    *metrics.Metrics

	queue  chan events.TicketRecorded
	mu     sync.RWMutex
	closed bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

func NewPublisher(sink Sink, cfg PublisherConfig, publishLog logger.ILogger, m *metrics.Metrics) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		sink:       sink,
		cfg:        cfg,
		publishLog: publishLog,
		metrics:    m,
		queue:      make(chan events.TicketRecorded, cfg.QueueSize),
	}
}

// Start launches the workers. They run until Shutdown; cancelling ctx does not
// stop them, so a signal context cannot cut the drain short.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		p.group.Go(func() error {
			for ev := range p.queue {
				p.metrics.QueueDepth(len(p.queue))
				p.publish(ctx, ev)
			}
			return nil
		})
	}
}

// Enqueue never blocks. A full or closed queue is reported and returned, but
// the caller is expected to carry on.
func (p *Publisher) Enqueue(ticket entity.EscalationTicket) error {
	ev := NewTicketEvent(ticket)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.reportDropped(ev, ErrPublisherClosed)
		return ErrPublisherClosed
	}

	select {
	case p.queue <- ev:
		p.metrics.QueueDepth(len(p.queue))
		return nil
	default:
		p.reportDropped(ev, ErrQueueFull)
		return ErrQueueFull
	}
}

func (p *Publisher) publish(ctx context.Context, ev events.TicketRecorded) {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		return struct{}{}, p.sink.Publish(callCtx, ev)
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     p.cfg.InitialInterval,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          backoff.DefaultMultiplier,
			MaxInterval:         5 * time.Second,
		}),
		backoff.WithMaxTries(p.cfg.MaxAttempts),
	)

	if err != nil {
		p.metrics.Publish("failed")
		p.publishLog.Error("PUBLISHER", "Ticket publish failed, ledger row awaits reconciliation", map[string]interface{}{
			"ticket_id": ev.Ticket.ID,
			"user_id":   ev.Ticket.UserID,
			"attempts":  attempts,
			"error":     fmt.Errorf("%w: %v", ErrPublishFailed, err).Error(),
		})
		return
	}
	p.metrics.Publish("ok")
}

func (p *Publisher) reportDropped(ev events.TicketRecorded, reason error) {
	p.metrics.Publish("dropped")
	p.publishLog.Error("PUBLISHER", "Ticket not queued for publish, ledger row awaits reconciliation", map[string]interface{}{
		"ticket_id": ev.Ticket.ID,
		"user_id":   ev.Ticket.UserID,
		"error":     reason.Error(),
	})
}

// Shutdown stops intake and waits for queued tickets to drain. When ctx ends
// first, in-flight retries are abandoned and whatever is left is logged.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	if p.group == nil {
		for ev := range p.queue {
			p.reportDropped(ev, ErrPublisherClosed)
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		p.cancel()
		return err
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("publish queue drain: %w", ctx.Err())
	}
}

func NewTicketEvent(t entity.EscalationTicket) events.TicketRecorded {
	return events.TicketRecorded{Ticket: events.TicketPayload{
		ID:         t.Id,
		UserID:     t.UserId,
		Message:    t.Message,
		Label:      t.Label,
		Confidence: t.Confidence,
		Escalated:  t.Escalated,
		Reason:     t.Reason,
		CreatedAt:  t.CreatedAt,
	}}
}
