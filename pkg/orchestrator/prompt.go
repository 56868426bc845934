package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/pkg/llm"
	"support-chatbot-be/pkg/store"

	"github.com/go-playground/validator/v10"
)

const ToolEscalateTicket = "escalate_ticket"

const systemPrompt = "You are an expert Tier-2 telecom-support engineer. " +
	"Always ask 1-2 clarifying questions if the user's description is incomplete. " +
	"When you give a fix, list steps in numbered order and cite the exact menu names/buttons. " +
	"Escalate to human only after you've run through all scripted diagnostics unless the user clearly requests escalation. " +
	"If the user explicitly requests a human, or uses phrases like 'agent', 'representative', 'supervisor', or 'escalate', " +
	"CALL the escalate_ticket function with reason='user_requested' instead of answering normally. " +
	"After any tool call, summarize succinctly and ask if anything else is needed. " +
	"If you have already escalated within the last %s for this user, do not escalate again; instead inform them it's already escalated."

const (
	ticketTimeLayout = "2006-01-02 15:04:05"

	msgTicketCreated = "I'm transferring this to a human agent (Ticket #%d created at %s). " +
		"They'll get back to you as soon as possible. Is there anything else I can help you with?"
	msgAlreadyEscalated = "Your request has already been escalated to a human agent and the ticket is still open. " +
		"They'll get back to you as soon as possible. Is there anything else I can help you with?"
	msgEscalationUnavailable = "I couldn't reach our ticketing system just now, so a human agent hasn't been notified yet. " +
		"Please try again in a few minutes. Is there anything else I can help you with?"
)

var escalateTool = llm.ToolDefinition{
	Name: ToolEscalateTicket,
	Description: "Escalate the current support interaction to a human Tier-3 agent. " +
		"Call this when the user explicitly asks for a human/manager/escalation OR when troubleshooting is blocked.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"user_id":      map[string]interface{}{"type": "string", "description": "Customer user ID."},
			"user_message": map[string]interface{}{"type": "string", "description": "The latest user message."},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Reason for escalation (user_requested, low_confidence, billing_exception, abusive_language, etc.).",
			},
		},
		"required":             []string{"user_id", "user_message", "reason"},
		"additionalProperties": false,
	},
}

func ticketCreatedMessage(ticket *entity.EscalationTicket) string {
	return fmt.Sprintf(msgTicketCreated, ticket.Id, ticket.CreatedAt.UTC().Format(ticketTimeLayout))
}

func buildSystemPrompt(cooldown time.Duration) string {
	return fmt.Sprintf(systemPrompt, humanDuration(cooldown))
}

func humanDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}

// buildContext assembles system instructions, prior history and the new user turn.
func buildContext(system string, history []store.Message, text string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		// tool results are not replayable without their originating call
		if m.Role == store.RoleTool || m.Role == store.RoleSystem {
			continue
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: text})
}

// ToolArgs are the escalate_ticket arguments after defaulting.
type ToolArgs struct {
	UserID      string `json:"user_id" validate:"required,max=128"`
	UserMessage string `json:"user_message" validate:"required"`
	Reason      string `json:"reason" validate:"required,max=64"`
}

// parseToolArgs decodes and validates tool arguments. Identity always comes from
// the turn, never from the model. Missing fields are filled with known values;
// if the result is still invalid it falls back to user_requested with the turn's
// own message and reports ErrToolArgumentInvalid.
func parseToolArgs(v *validator.Validate, raw, userID, text string) (ToolArgs, error) {
	var args ToolArgs
	var decodeErr error
	if strings.TrimSpace(raw) != "" {
		decodeErr = json.Unmarshal([]byte(raw), &args)
	}

	args.UserID = userID
	if strings.TrimSpace(args.UserMessage) == "" {
		args.UserMessage = text
	}
	if strings.TrimSpace(args.Reason) == "" {
		args.Reason = entity.ReasonUserRequested
	}

	if decodeErr == nil {
		decodeErr = v.Struct(args)
	}
	if decodeErr != nil {
		return ToolArgs{UserID: userID, UserMessage: text, Reason: entity.ReasonUserRequested},
			fmt.Errorf("%w: %v", ErrToolArgumentInvalid, decodeErr)
	}
	return args, nil
}

type toolResult struct {
	Status string `json:"status"`
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

func toolResultContent(reply string) string {
	b, _ := json.Marshal(toolResult{Status: "ok", Tool: ToolEscalateTicket, Result: reply})
	return string(b)
}
