package entity

import "time"

const (
	ReasonLowConfidence = "low_confidence"
	ReasonUserRequested = "user_requested"
)

// EscalationTicket is immutable once recorded; Id and CreatedAt are assigned by the ledger.
type EscalationTicket struct {
	Id         uint64
	UserId     string
	Message    string
	Label      *string
	Confidence *float64
	Escalated  bool
	Reason     string
	CreatedAt  time.Time
}
