package events

import (
	"strconv"
	"time"
)

const TicketRecordedType = "TICKET_RECORDED"

// TicketPayload is the wire form of a recorded ticket. ID is the ledger id.
type TicketPayload struct {
	ID         uint64    `json:"id"`
	UserID     string    `json:"user_id"`
	Message    string    `json:"message"`
	Label      *string   `json:"label"`
	Confidence *float64  `json:"confidence"`
	Escalated  bool      `json:"escalated"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type TicketRecorded struct {
	Ticket TicketPayload
}

func (e TicketRecorded) EventType() string {
	return TicketRecordedType
}

func (e TicketRecorded) Key() string {
	return e.Ticket.UserID
}

func (e TicketRecorded) MessageID() string {
	return "ticket-" + strconv.FormatUint(e.Ticket.ID, 10)
}

func (e TicketRecorded) Payload() interface{} {
	return e.Ticket
}

func (e TicketRecorded) Timestamp() time.Time {
	return e.Ticket.CreatedAt
}
