package model

import "time"

// Ticket is the durable escalation ledger row.
type Ticket struct {
	Id         uint64    `gorm:"primaryKey;autoIncrement"`
	UserId     string    `gorm:"type:text;not null;index:idx_tickets_user_escalated_created,priority:1"`
	Message    string    `gorm:"type:text;not null"`
	Label      *string   `gorm:"type:varchar(32)"`
	Confidence *float64  `gorm:"type:double precision"`
	Escalated  bool      `gorm:"not null;index:idx_tickets_user_escalated_created,priority:2"`
	Reason     string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime;index:idx_tickets_user_escalated_created,priority:3"`
}

func (Ticket) TableName() string {
	return "tickets"
}
