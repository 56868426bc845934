package mapper

import (
	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/model"
)

type TicketMapper struct{}

func NewTicketMapper() *TicketMapper {
	return &TicketMapper{}
}

func (m *TicketMapper) ToEntity(t *model.Ticket) *entity.EscalationTicket {
	if t == nil {
		return nil
	}
	return &entity.EscalationTicket{
		Id:         t.Id,
		UserId:     t.UserId,
		Message:    t.Message,
		Label:      t.Label,
		Confidence: t.Confidence,
		Escalated:  t.Escalated,
		Reason:     t.Reason,
		CreatedAt:  t.CreatedAt,
	}
}

func (m *TicketMapper) ToModel(t *entity.EscalationTicket) *model.Ticket {
	if t == nil {
		return nil
	}
	return &model.Ticket{
		Id:         t.Id,
		UserId:     t.UserId,
		Message:    t.Message,
		Label:      t.Label,
		Confidence: t.Confidence,
		Escalated:  t.Escalated,
		Reason:     t.Reason,
		CreatedAt:  t.CreatedAt,
	}
}
