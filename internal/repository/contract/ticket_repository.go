package contract

import (
	"context"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/repository/specification"
)

type TicketRepository interface {
	// Create inserts the ticket and fills in the store-assigned Id and CreatedAt.
	Create(ctx context.Context, ticket *entity.EscalationTicket) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.EscalationTicket, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.EscalationTicket, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// LockUser serializes escalation writers for one user until the surrounding transaction ends.
	LockUser(ctx context.Context, userID string) error
}
