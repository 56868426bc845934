package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/pkg/classifier"
	"support-chatbot-be/pkg/llm"
)

type fakeClassifier struct {
	result classifier.Result
}

func (f fakeClassifier) Classify(context.Context, string) classifier.Result {
	return f.result
}

func confident(label string, score float64) fakeClassifier {
	return fakeClassifier{result: classifier.Result{Label: &label, Confidence: &score}}
}

type fakeEngine struct {
	mu          sync.Mutex
	decision    *llm.Completion
	decisionErr error
	followUp    *llm.Completion
	followErr   error
	chunks      []string
	openErr     error
	streamErr   error // returned after all chunks
	calls       [][]llm.Message
	tools       [][]llm.ToolDefinition
	closed      bool
}

func (f *fakeEngine) Complete(_ context.Context, history []llm.Message, tools []llm.ToolDefinition, _ ...llm.Option) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, history)
	f.tools = append(f.tools, tools)
	if len(f.calls) == 1 {
		return f.decision, f.decisionErr
	}
	return f.followUp, f.followErr
}

func (f *fakeEngine) Stream(ctx context.Context, _ []llm.Message, _ ...llm.Option) (llm.ChunkStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeStream{ctx: ctx, engine: f, chunks: append([]string(nil), f.chunks...), err: f.streamErr}, nil
}

type fakeStream struct {
	ctx    context.Context
	engine *fakeEngine
	chunks []string
	err    error
}

func (s *fakeStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeStream) Close() error {
	s.engine.mu.Lock()
	s.engine.closed = true
	s.engine.mu.Unlock()
	return nil
}

// memLedger keeps tickets in memory with the same cooldown semantics as the real ledger.
type memLedger struct {
	mu        sync.Mutex
	tickets   []entity.EscalationTicket
	nextID    uint64
	now       func() time.Time
	recordErr error
	checkErr  error
}

func newMemLedger() *memLedger {
	return &memLedger{now: time.Now}
}

func (l *memLedger) Record(_ context.Context, t *entity.EscalationTicket) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordLocked(t)
}

func (l *memLedger) recordLocked(t *entity.EscalationTicket) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.nextID++
	t.Id = l.nextID
	t.CreatedAt = l.now()
	l.tickets = append(l.tickets, *t)
	return nil
}

func (l *memLedger) RecentlyEscalated(_ context.Context, userID string, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.checkErr != nil {
		return false, l.checkErr
	}
	return l.recentLocked(userID, window), nil
}

func (l *memLedger) recentLocked(userID string, window time.Duration) bool {
	since := l.now().Add(-window)
	for _, t := range l.tickets {
		if t.UserId == userID && t.Escalated && !t.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}

func (l *memLedger) RecordIfNotRecentlyEscalated(_ context.Context, t *entity.EscalationTicket, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.checkErr != nil {
		return false, l.checkErr
	}
	if l.recentLocked(t.UserId, window) {
		return false, nil
	}
	if err := l.recordLocked(t); err != nil {
		return false, err
	}
	return true, nil
}

func (l *memLedger) escalated(userID string) []entity.EscalationTicket {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []entity.EscalationTicket
	for _, t := range l.tickets {
		if t.UserId == userID && t.Escalated {
			out = append(out, t)
		}
	}
	return out
}

func (l *memLedger) audits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.tickets {
		if !t.Escalated {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	mu  sync.Mutex
	got []entity.EscalationTicket
	err error
}

func (q *fakeQueue) Enqueue(t entity.EscalationTicket) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.got = append(q.got, t)
	return q.err
}

var errUpstream = errors.New("upstream unavailable")
