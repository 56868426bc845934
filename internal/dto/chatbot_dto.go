package dto

import "time"

type CreateSessionResponse struct {
	Id        string    `json:"id"`
	ExpiresIn int       `json:"expires_in"` // seconds, refreshed on every use
	CreatedAt time.Time `json:"created_at"`
}

type SessionResponse struct {
	Id        string     `json:"id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type ChatMessageResponse struct {
	Role     string `json:"role"`
	Chat     string `json:"chat"`
	Sequence int64  `json:"seq"`
}

type SendChatRequest struct {
	ChatSessionId string `json:"chat_session_id" validate:"required,max=128"`
	Chat          string `json:"chat" validate:"required,max=4000"`
}

// ChatChunkEvent is one server-sent increment: the full reply so far.
type ChatChunkEvent struct {
	Chat string `json:"chat"`
}

// ChatDoneEvent closes a reply stream.
type ChatDoneEvent struct {
	Path     string  `json:"path"`
	Complete bool    `json:"complete"`
	TicketId *uint64 `json:"ticket_id,omitempty"`
}

type TicketResponse struct {
	Id         uint64    `json:"id"`
	Message    string    `json:"message"`
	Label      *string   `json:"label"`
	Confidence *float64  `json:"confidence"`
	Escalated  bool      `json:"escalated"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type LabelResponse struct {
	Id          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Synonyms    []string `json:"synonyms"`
}
