package specification

import (
	"time"

	"gorm.io/gorm"
)

type ByTicketID struct {
	ID uint64
}

func (s ByTicketID) Apply(db *gorm.DB) *gorm.DB {
	return FilterBy{Field: "id", Value: s.ID}.Apply(db)
}

type TicketOwnedBy struct {
	UserID string
}

func (s TicketOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return FilterBy{Field: "user_id", Value: s.UserID}.Apply(db)
}

// EscalatedOnly excludes the audit-only (escalated=false) rows.
type EscalatedOnly struct{}

func (s EscalatedOnly) Apply(db *gorm.DB) *gorm.DB {
	return FilterBy{Field: "escalated", Value: true}.Apply(db)
}

type CreatedSince struct {
	Since time.Time
}

func (s CreatedSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at >= ?", s.Since)
}
