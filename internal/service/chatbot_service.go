package service

import (
	"context"
	"fmt"
	"time"

	"support-chatbot-be/internal/dto"
	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/pkg/classifier"
	"support-chatbot-be/pkg/orchestrator"
	"support-chatbot-be/pkg/store"
)

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	CreateSession(ctx context.Context, userId string) (*dto.CreateSessionResponse, error)
	CloseSession(ctx context.Context, userId, sessionId string) error
	RevokeSession(ctx context.Context, userId, sessionId string) error
	ListSessions(ctx context.Context, userId string) ([]*dto.SessionResponse, error)
	GetChatHistory(ctx context.Context, userId, sessionId string) ([]*dto.ChatMessageResponse, error)
	SendChat(ctx context.Context, userId string, request *dto.SendChatRequest) (*orchestrator.Response, error)
	ListTickets(ctx context.Context, userId string, limit int) ([]*dto.TicketResponse, error)
	GetLabels() []*dto.LabelResponse
}

type TurnHandler interface {
	HandleMessage(ctx context.Context, turn orchestrator.Turn) *orchestrator.Response
}

type TicketLister interface {
	Tickets(ctx context.Context, userID string, limit int) ([]*entity.EscalationTicket, error)
}

type chatbotService struct {
	sessions     store.SessionStore
	orchestrator TurnHandler
	tickets      TicketLister
	sessionTTL   time.Duration
	storeTimeout time.Duration
	logger       logger.ILogger
}

func NewChatbotService(
	sessions store.SessionStore,
	orch TurnHandler,
	tickets TicketLister,
	sessionTTL time.Duration,
	storeTimeout time.Duration,
	log logger.ILogger,
) IChatbotService {
	return &chatbotService{
		sessions:     sessions,
		orchestrator: orch,
		tickets:      tickets,
		sessionTTL:   sessionTTL,
		storeTimeout: storeTimeout,
		logger:       log,
	}
}

func (c *chatbotService) CreateSession(ctx context.Context, userId string) (*dto.CreateSessionResponse, error) {
	sessionId, err := c.sessions.Issue(ctx, userId, c.sessionTTL)
	if err != nil {
		return nil, err
	}

	c.logger.Info("CHATBOT", "Session issued", map[string]interface{}{"user_id": userId})
	return &dto.CreateSessionResponse{
		Id:        sessionId,
		ExpiresIn: int(c.sessionTTL / time.Second),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// authorize resolves the session, checks ownership and slides its expiry.
// Sessions of other users are reported as missing.
func (c *chatbotService) authorize(ctx context.Context, userId, sessionId string) error {
	owner, ok, err := c.sessions.Resolve(ctx, sessionId)
	if err != nil {
		return err
	}
	if !ok || owner != userId {
		return store.ErrSessionNotFound
	}
	return c.sessions.Touch(ctx, sessionId, c.sessionTTL)
}

func (c *chatbotService) CloseSession(ctx context.Context, userId, sessionId string) error {
	if err := c.authorize(ctx, userId, sessionId); err != nil {
		return err
	}
	return c.sessions.Close(ctx, sessionId)
}

func (c *chatbotService) RevokeSession(ctx context.Context, userId, sessionId string) error {
	s, err := c.sessions.Get(ctx, sessionId)
	if err != nil {
		return err
	}
	if s == nil || s.UserID != userId {
		// idempotent: nothing of this user's to remove
		return nil
	}
	return c.sessions.Revoke(ctx, sessionId)
}

func (c *chatbotService) ListSessions(ctx context.Context, userId string) ([]*dto.SessionResponse, error) {
	ids, err := c.sessions.ListSessions(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.SessionResponse, 0, len(ids))
	for _, id := range ids {
		s, err := c.sessions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		res = append(res, &dto.SessionResponse{
			Id:        s.ID,
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
			EndedAt:   s.EndedAt,
		})
	}
	return res, nil
}

func (c *chatbotService) GetChatHistory(ctx context.Context, userId, sessionId string) ([]*dto.ChatMessageResponse, error) {
	if err := c.authorize(ctx, userId, sessionId); err != nil {
		return nil, err
	}

	history, err := c.sessions.History(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ChatMessageResponse, len(history))
	for i, m := range history {
		res[i] = &dto.ChatMessageResponse{Role: m.Role, Chat: m.Content, Sequence: m.Sequence}
	}
	return res, nil
}

// SendChat only fails when the session cannot be resolved. Everything after
// that degrades inside the returned response.
func (c *chatbotService) SendChat(ctx context.Context, userId string, request *dto.SendChatRequest) (*orchestrator.Response, error) {
	sessionId := request.ChatSessionId
	if err := c.authorize(ctx, userId, sessionId); err != nil {
		return nil, err
	}

	history, err := c.sessions.History(ctx, sessionId)
	if err != nil {
		c.logger.Warn("CHATBOT", "History unavailable, answering without context", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		history = nil
	}

	if err := c.sessions.AppendMessage(ctx, sessionId, store.RoleUser, request.Chat); err != nil {
		c.logger.Warn("CHATBOT", "User message not saved to history", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	resp := c.orchestrator.HandleMessage(ctx, orchestrator.Turn{
		UserID:  userId,
		Message: request.Chat,
		History: history,
	})

	resp.OnFinish(func(text string, complete bool) {
		// partial answers are not persisted
		if !complete || text == "" {
			return
		}
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.storeTimeout)
		defer cancel()
		if err := c.sessions.AppendMessage(saveCtx, sessionId, store.RoleAssistant, text); err != nil {
			c.logger.Warn("CHATBOT", "Assistant message not saved to history", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
	})

	return resp, nil
}

func (c *chatbotService) ListTickets(ctx context.Context, userId string, limit int) ([]*dto.TicketResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	tickets, err := c.tickets.Tickets(ctx, userId, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	res := make([]*dto.TicketResponse, len(tickets))
	for i, t := range tickets {
		res[i] = &dto.TicketResponse{
			Id:         t.Id,
			Message:    t.Message,
			Label:      t.Label,
			Confidence: t.Confidence,
			Escalated:  t.Escalated,
			Reason:     t.Reason,
			CreatedAt:  t.CreatedAt,
		}
	}
	return res, nil
}

func (c *chatbotService) GetLabels() []*dto.LabelResponse {
	res := make([]*dto.LabelResponse, len(classifier.DefaultLabels))
	for i, l := range classifier.DefaultLabels {
		res[i] = &dto.LabelResponse{
			Id:          l.ID,
			Name:        l.Name,
			Description: l.Description,
			Synonyms:    l.Synonyms,
		}
	}
	return res
}
