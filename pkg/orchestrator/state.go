package orchestrator

import (
	"support-chatbot-be/internal/entity"
	"support-chatbot-be/pkg/classifier"
	"support-chatbot-be/pkg/llm"
)

// State is a stage of one chat turn.
type State int

const (
	StateClassifying State = iota
	StateEscalatingAuto
	StateEscalatingCooldownBlocked
	StateReasoning
	StateEscalatingTool
	StateStreaming
	StateDone
)

func (s State) String() string {
	switch s {
	case StateClassifying:
		return "classifying"
	case StateEscalatingAuto:
		return "escalating_auto"
	case StateEscalatingCooldownBlocked:
		return "escalating_cooldown_blocked"
	case StateReasoning:
		return "reasoning"
	case StateEscalatingTool:
		return "escalating_tool"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Action is a side effect the driver must perform when taking a step.
type Action int

const (
	ActionClassify Action = iota + 1
	ActionRecordAudit
	ActionDecide
	ActionCheckCooldown
	ActionRecordEscalation
	ActionPublish
	ActionReplyTicketCreated
	ActionReplyAlreadyEscalated
	ActionFollowUp
	ActionStream
)

func (a Action) String() string {
	switch a {
	case ActionClassify:
		return "classify"
	case ActionRecordAudit:
		return "record_audit"
	case ActionDecide:
		return "decide"
	case ActionCheckCooldown:
		return "check_cooldown"
	case ActionRecordEscalation:
		return "record_escalation"
	case ActionPublish:
		return "publish"
	case ActionReplyTicketCreated:
		return "reply_ticket_created"
	case ActionReplyAlreadyEscalated:
		return "reply_already_escalated"
	case ActionFollowUp:
		return "follow_up"
	case ActionStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Start is the entry step of every turn.
func Start() Step {
	return Step{Next: StateClassifying, Actions: []Action{ActionClassify}}
}

// Step is the outcome of a transition: where the turn goes next and what must happen on the way.
type Step struct {
	Next    State
	Reason  string
	Actions []Action
}

// Classified routes a classification result. Missing label or confidence,
// including a degraded classifier, escalates with reason low_confidence.
func Classified(res classifier.Result) Step {
	if !res.Confident() {
		return Step{Next: StateEscalatingAuto, Reason: entity.ReasonLowConfidence, Actions: []Action{ActionCheckCooldown}}
	}
	return Step{Next: StateReasoning, Actions: []Action{ActionRecordAudit, ActionDecide}}
}

// Decided routes the non-streaming decision call. A failed call degrades to
// automatic escalation because nothing has been shown to the user yet.
func Decided(c *llm.Completion, err error) Step {
	if err != nil || c == nil {
		return Step{Next: StateEscalatingAuto, Reason: entity.ReasonLowConfidence, Actions: []Action{ActionCheckCooldown}}
	}
	if call := escalationCall(c); call != nil {
		return Step{Next: StateEscalatingTool, Reason: entity.ReasonUserRequested, Actions: []Action{ActionCheckCooldown}}
	}
	return Step{Next: StateStreaming, Actions: []Action{ActionStream}}
}

// CooldownChecked follows the ledger check of an escalation that started in
// origin. recorded is true when the check and the insert were one atomic call.
// A suppressed escalation still leaves a non-escalated ledger row for the message.
func CooldownChecked(origin State, recent, recorded bool) Step {
	if recent {
		return Step{Next: StateEscalatingCooldownBlocked, Actions: []Action{ActionRecordAudit, ActionReplyAlreadyEscalated}}
	}
	actions := []Action{ActionPublish, ActionReplyTicketCreated}
	if !recorded {
		actions = append([]Action{ActionRecordEscalation}, actions...)
	}
	return Step{Next: StateDone, Actions: withFollowUp(origin, actions)}
}

// CooldownBlocked finishes a suppressed escalation. The reply is the fixed
// notice on both paths; no follow-up call is made.
func CooldownBlocked() Step {
	return Step{Next: StateDone}
}

// StreamOpened finishes the turn once generation has started. An error before
// the first increment degrades to automatic escalation.
func StreamOpened(err error) Step {
	if err != nil {
		return Step{Next: StateEscalatingAuto, Reason: entity.ReasonLowConfidence, Actions: []Action{ActionCheckCooldown}}
	}
	return Step{Next: StateDone}
}

func withFollowUp(origin State, actions []Action) []Action {
	if origin == StateEscalatingTool {
		return append(actions, ActionFollowUp)
	}
	return actions
}

func escalationCall(c *llm.Completion) *llm.ToolCall {
	for i := range c.ToolCalls {
		if c.ToolCalls[i].Name == ToolEscalateTicket {
			return &c.ToolCalls[i]
		}
	}
	return nil
}
