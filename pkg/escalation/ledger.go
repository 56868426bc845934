package escalation

import (
	"context"
	"fmt"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/repository/specification"
	"support-chatbot-be/internal/repository/unitofwork"
	"support-chatbot-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultCooldown = 5 * time.Minute

var tracer = otel.Tracer("support-chatbot-be/escalation")

// Ledger is the durable record of every support request and the only authority
// on whether a user escalated recently.
type Ledger struct {
	repoFactory unitofwork.RepositoryFactory
	timeout     time.Duration
	logger      logger.ILogger
	now         func() time.Time
}

func NewLedger(repoFactory unitofwork.RepositoryFactory, timeout time.Duration, log logger.ILogger) *Ledger {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Ledger{
		repoFactory: repoFactory,
		timeout:     timeout,
		logger:      log,
		now:         time.Now,
	}
}

// Record inserts the ticket and fills in its Id and CreatedAt. The insert is a
// single statement, so a failed call leaves nothing behind.
func (l *Ledger) Record(ctx context.Context, ticket *entity.EscalationTicket) error {
	ctx, span := tracer.Start(ctx, "ledger.Record")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	uow := l.repoFactory.NewUnitOfWork(ctx)
	if err := uow.TicketRepository().Create(ctx, ticket); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: record ticket: %v", store.ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.Int64("ticket.id", int64(ticket.Id)), attribute.Bool("ticket.escalated", ticket.Escalated))
	l.logger.Info("LEDGER", "Ticket recorded", map[string]interface{}{
		"ticket_id": ticket.Id,
		"user_id":   ticket.UserId,
		"escalated": ticket.Escalated,
		"reason":    ticket.Reason,
	})
	return nil
}

// RecentlyEscalated reports whether the user has an escalated ticket newer than window.
func (l *Ledger) RecentlyEscalated(ctx context.Context, userID string, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecentlyEscalated")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	uow := l.repoFactory.NewUnitOfWork(ctx)
	n, err := uow.TicketRepository().Count(ctx, recentEscalations(userID, l.now().Add(-window))...)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: cooldown check: %v", store.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// RecordIfNotRecentlyEscalated is the atomic variant of RecentlyEscalated followed
// by Record. Writers for the same user are serialized by a transaction-scoped lock.
// It returns false without writing when the user is inside the cooldown window.
func (l *Ledger) RecordIfNotRecentlyEscalated(ctx context.Context, ticket *entity.EscalationTicket, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordIfNotRecentlyEscalated")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	uow := l.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("%w: begin: %v", store.ErrStoreUnavailable, err)
	}
	defer func() {
		// no-op after a successful commit
		_ = uow.Rollback()
	}()

	repo := uow.TicketRepository()
	if err := repo.LockUser(ctx, ticket.UserId); err != nil {
		return false, fmt.Errorf("%w: lock user: %v", store.ErrStoreUnavailable, err)
	}

	n, err := repo.Count(ctx, recentEscalations(ticket.UserId, l.now().Add(-window))...)
	if err != nil {
		return false, fmt.Errorf("%w: cooldown check: %v", store.ErrStoreUnavailable, err)
	}
	if n > 0 {
		return false, nil
	}

	if err := repo.Create(ctx, ticket); err != nil {
		return false, fmt.Errorf("%w: record ticket: %v", store.ErrStoreUnavailable, err)
	}
	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", store.ErrStoreUnavailable, err)
	}

	l.logger.Info("LEDGER", "Ticket recorded", map[string]interface{}{
		"ticket_id": ticket.Id,
		"user_id":   ticket.UserId,
		"escalated": ticket.Escalated,
		"reason":    ticket.Reason,
		"strict":    true,
	})
	return true, nil
}

// Tickets lists a user's tickets, newest first.
func (l *Ledger) Tickets(ctx context.Context, userID string, limit int) ([]*entity.EscalationTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	uow := l.repoFactory.NewUnitOfWork(ctx)
	tickets, err := uow.TicketRepository().FindAll(ctx,
		specification.TicketOwnedBy{UserID: userID},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list tickets: %v", store.ErrStoreUnavailable, err)
	}
	return tickets, nil
}

func recentEscalations(userID string, since time.Time) []specification.Specification {
	return []specification.Specification{
		specification.TicketOwnedBy{UserID: userID},
		specification.EscalatedOnly{},
		specification.CreatedSince{Since: since},
	}
}
