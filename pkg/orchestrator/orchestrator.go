package orchestrator

import (
	"context"
	"errors"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/pkg/metrics"
	"support-chatbot-be/pkg/classifier"
	"support-chatbot-be/pkg/llm"
	"support-chatbot-be/pkg/store"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrToolArgumentInvalid is reported when escalate_ticket arguments cannot be
// used even after defaulting. The escalation still happens.
var ErrToolArgumentInvalid = errors.New("tool argument invalid")

var tracer = otel.Tracer("support-chatbot-be/orchestrator")

type IntentClassifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

type Ledger interface {
	Record(ctx context.Context, ticket *entity.EscalationTicket) error
	RecentlyEscalated(ctx context.Context, userID string, window time.Duration) (bool, error)
	RecordIfNotRecentlyEscalated(ctx context.Context, ticket *entity.EscalationTicket, window time.Duration) (bool, error)
}

type TicketQueue interface {
	Enqueue(ticket entity.EscalationTicket) error
}

type Config struct {
	Cooldown     time.Duration
	StrictDedupe bool
	Temperature  float64
	Timeout      time.Duration // per reasoning call, and for a whole stream
}

// Orchestrator decides for each turn between escalating, reporting an open
// escalation, and generating an answer. Safe for concurrent turns.
type Orchestrator struct {
	classifier IntentClassifier
	engine     llm.ReasoningEngine
	ledger     Ledger
	queue      TicketQueue
	cfg        Config
	system     string
	validate   *validator.Validate
	logger     logger.ILogger
	metrics    *metrics.Metrics
}

func New(
	c IntentClassifier,
	engine llm.ReasoningEngine,
	ledger Ledger,
	queue TicketQueue,
	cfg Config,
	log logger.ILogger,
	m *metrics.Metrics,
) *Orchestrator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Orchestrator{
		classifier: c,
		engine:     engine,
		ledger:     ledger,
		queue:      queue,
		cfg:        cfg,
		system:     buildSystemPrompt(cfg.Cooldown),
		validate:   validator.New(),
		logger:     log,
		metrics:    m,
	}
}

type Turn struct {
	UserID  string
	Message string
	History []store.Message // oldest first, without the new message
}

// turnState carries one turn through the state machine.
type turnState struct {
	Turn

	classification classifier.Result
	audited        bool
	messages       []llm.Message
	decision       *llm.Completion
	decisionErr    error
	toolCall       *llm.ToolCall

	origin        State
	reason        string
	ticket        *entity.EscalationTicket
	recent        bool
	recorded      bool
	escalationErr error
	reply         string

	streamErr error
	resp      *Response
}

// HandleMessage runs one turn. It never fails: every degraded path ends in chat text.
func (o *Orchestrator) HandleMessage(ctx context.Context, turn Turn) *Response {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "orchestrator.HandleMessage")
	defer span.End()

	t := &turnState{Turn: turn}
	path := StateClassifying
	step := Start()

	for {
		if step.Next == StateEscalatingAuto || step.Next == StateEscalatingTool {
			t.origin, t.reason = step.Next, step.Reason
		}
		for _, a := range step.Actions {
			o.perform(ctx, t, a)
		}
		if step.Next == StateDone {
			break
		}
		path = step.Next
		step = o.transition(path, t)
	}

	span.SetAttributes(attribute.String("turn.path", path.String()))
	o.metrics.Turn(path.String())
	o.metrics.TurnDecided(start)

	if t.resp != nil {
		t.resp.Path = path
		return t.resp
	}
	var escalated *entity.EscalationTicket
	if t.ticket != nil && t.ticket.Id != 0 && t.escalationErr == nil {
		escalated = t.ticket
	}
	return fixedResponse(path, t.reply, escalated)
}

func (o *Orchestrator) transition(s State, t *turnState) Step {
	switch s {
	case StateClassifying:
		return Classified(t.classification)
	case StateReasoning:
		return Decided(t.decision, t.decisionErr)
	case StateEscalatingAuto, StateEscalatingTool:
		return CooldownChecked(t.origin, t.recent, t.recorded)
	case StateEscalatingCooldownBlocked:
		return CooldownBlocked()
	case StateStreaming:
		return StreamOpened(t.streamErr)
	default:
		return Step{Next: StateDone}
	}
}

func (o *Orchestrator) perform(ctx context.Context, t *turnState, a Action) {
	switch a {
	case ActionClassify:
		t.classification = o.classifier.Classify(ctx, t.Message)
	case ActionRecordAudit:
		o.recordAudit(ctx, t)
	case ActionDecide:
		o.decide(ctx, t)
	case ActionCheckCooldown:
		o.checkCooldown(ctx, t)
	case ActionRecordEscalation:
		if t.escalationErr == nil {
			t.escalationErr = o.ledger.Record(ctx, t.ticket)
		}
	case ActionPublish:
		if t.escalationErr == nil {
			// failures are reported by the queue itself
			_ = o.queue.Enqueue(*t.ticket)
		}
	case ActionReplyTicketCreated:
		if t.escalationErr != nil {
			o.metrics.Escalation(t.ticket.Reason, "failed")
			o.logger.Error("ORCHESTRATOR", "Escalation could not be recorded", map[string]interface{}{
				"user_id": t.UserID,
				"reason":  t.ticket.Reason,
				"error":   t.escalationErr.Error(),
			})
			t.reply = msgEscalationUnavailable
			return
		}
		o.metrics.Escalation(t.ticket.Reason, "recorded")
		t.reply = ticketCreatedMessage(t.ticket)
	case ActionReplyAlreadyEscalated:
		o.metrics.Escalation(t.reason, "cooldown")
		t.reply = msgAlreadyEscalated
	case ActionFollowUp:
		o.followUp(ctx, t)
	case ActionStream:
		o.openStream(ctx, t)
	}
}

// recordAudit writes the message's non-escalated row at most once per turn.
func (o *Orchestrator) recordAudit(ctx context.Context, t *turnState) {
	if t.audited {
		return
	}
	t.audited = true
	audit := &entity.EscalationTicket{
		UserId:     t.UserID,
		Message:    t.Message,
		Label:      t.classification.Label,
		Confidence: t.classification.Confidence,
		Escalated:  false,
	}
	if err := o.ledger.Record(ctx, audit); err != nil {
		o.logger.Warn("ORCHESTRATOR", "Audit ticket not recorded", map[string]interface{}{
			"user_id": t.UserID,
			"error":   err.Error(),
		})
	}
}

func (o *Orchestrator) decide(ctx context.Context, t *turnState) {
	t.messages = buildContext(o.system, t.History, t.Message)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	t.decision, t.decisionErr = o.engine.Complete(callCtx, t.messages, []llm.ToolDefinition{escalateTool}, llm.WithTemperature(o.cfg.Temperature))
	if t.decisionErr != nil {
		o.logger.Warn("ORCHESTRATOR", "Reasoning call failed, escalating", map[string]interface{}{
			"user_id": t.UserID,
			"error":   t.decisionErr.Error(),
		})
		return
	}
	if t.decision != nil {
		t.toolCall = escalationCall(t.decision)
	}
}

func (o *Orchestrator) checkCooldown(ctx context.Context, t *turnState) {
	t.ticket = o.escalationTicket(t)
	t.recent, t.recorded, t.escalationErr = false, false, nil

	if o.cfg.StrictDedupe {
		recorded, err := o.ledger.RecordIfNotRecentlyEscalated(ctx, t.ticket, o.cfg.Cooldown)
		if err != nil {
			t.escalationErr = err
			return
		}
		t.recorded, t.recent = recorded, !recorded
		return
	}

	recent, err := o.ledger.RecentlyEscalated(ctx, t.UserID, o.cfg.Cooldown)
	if err != nil {
		// a missed duplicate is better than a dropped escalation
		o.logger.Warn("ORCHESTRATOR", "Cooldown check failed, escalating anyway", map[string]interface{}{
			"user_id": t.UserID,
			"error":   err.Error(),
		})
		return
	}
	t.recent = recent
}

func (o *Orchestrator) escalationTicket(t *turnState) *entity.EscalationTicket {
	ticket := &entity.EscalationTicket{
		UserId:     t.UserID,
		Message:    t.Message,
		Label:      t.classification.Label,
		Confidence: t.classification.Confidence,
		Escalated:  true,
		Reason:     t.reason,
	}
	if t.origin != StateEscalatingTool || t.toolCall == nil {
		return ticket
	}

	args, err := parseToolArgs(o.validate, t.toolCall.Arguments, t.UserID, t.Message)
	if err != nil {
		o.logger.Warn("ORCHESTRATOR", "Tool arguments unusable, using known values", map[string]interface{}{
			"user_id": t.UserID,
			"error":   err.Error(),
		})
	}
	ticket.Message = args.UserMessage
	ticket.Reason = args.Reason
	t.reason = args.Reason
	return ticket
}

// followUp hands the tool result back to the model for a short summary. The
// fixed reply stays when that call fails.
func (o *Orchestrator) followUp(ctx context.Context, t *turnState) {
	if t.toolCall == nil {
		return
	}
	msgs := make([]llm.Message, 0, len(t.messages)+2)
	msgs = append(msgs, t.messages...)
	msgs = append(msgs,
		llm.Message{Role: llm.RoleAssistant, Content: t.decision.Content, ToolCalls: []llm.ToolCall{*t.toolCall}},
		llm.Message{Role: llm.RoleTool, Name: ToolEscalateTicket, ToolCallID: t.toolCall.ID, Content: toolResultContent(t.reply)},
	)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	final, err := o.engine.Complete(callCtx, msgs, nil, llm.WithTemperature(o.cfg.Temperature))
	if err != nil || final == nil || final.Content == "" {
		details := map[string]interface{}{"user_id": t.UserID}
		if err != nil {
			details["error"] = err.Error()
		}
		o.logger.Warn("ORCHESTRATOR", "Follow-up after tool call failed, replying with fixed text", details)
		return
	}
	t.reply = final.Content
}

func (o *Orchestrator) openStream(ctx context.Context, t *turnState) {
	streamCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)

	stream, err := o.engine.Stream(streamCtx, t.messages, llm.WithTemperature(o.cfg.Temperature))
	if err != nil {
		cancel()
		t.streamErr = err
		o.logger.Warn("ORCHESTRATOR", "Stream failed to open, escalating", map[string]interface{}{
			"user_id": t.UserID,
			"error":   err.Error(),
		})
		return
	}

	first, err := readFirst(stream)
	if err != nil {
		_ = stream.Close()
		cancel()
		t.streamErr = err
		o.logger.Warn("ORCHESTRATOR", "Stream failed before any text, escalating", map[string]interface{}{
			"user_id": t.UserID,
			"error":   err.Error(),
		})
		return
	}

	reader := &streamReader{
		stream: stream,
		cancel: cancel,
		onErr: func(err error) {
			o.metrics.GenerationTruncated()
			o.logger.Warn("ORCHESTRATOR", "Generation interrupted, answer truncated", map[string]interface{}{
				"user_id": t.UserID,
				"error":   err.Error(),
			})
		},
	}
	t.resp = &Response{
		first: first,
		next:  reader.next,
		stop:  reader.close,
	}
}
