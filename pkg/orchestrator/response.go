package orchestrator

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"support-chatbot-be/internal/entity"
	"support-chatbot-be/pkg/llm"
)

// Response is the lazy answer to one turn. Increments yields the full response
// so far on every step. It can be ranged over once.
type Response struct {
	// Path is the last non-terminal state the turn went through.
	Path State
	// Ticket is the escalated ticket recorded by this turn, if any.
	Ticket *entity.EscalationTicket

	next     func() (string, bool, error) // nil for fixed replies
	first    string
	stop     func()
	onFinish func(text string, complete bool)

	used     atomic.Bool
	mu       sync.Mutex
	text     string
	complete bool
	closed   bool
}

func fixedResponse(path State, text string, ticket *entity.EscalationTicket) *Response {
	return &Response{Path: path, Ticket: ticket, first: text}
}

// Increments returns the single-use sequence of growing partial responses.
// Breaking out of the loop abandons generation.
func (r *Response) Increments() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !r.used.CompareAndSwap(false, true) {
			return
		}
		defer r.Close()

		text := r.first
		r.setText(text, r.next == nil)
		if !yield(text) {
			return
		}
		if r.next == nil {
			return
		}

		for {
			delta, ok, err := r.next()
			if err != nil || !ok {
				r.setText(text, err == nil)
				return
			}
			if delta == "" {
				continue
			}
			text += delta
			r.setText(text, false)
			if !yield(text) {
				return
			}
		}
	}
}

func (r *Response) setText(text string, complete bool) {
	r.mu.Lock()
	r.text = text
	r.complete = complete
	r.mu.Unlock()
}

// Text is what has been produced so far.
func (r *Response) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

// Complete reports whether generation ran to its natural end.
func (r *Response) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete
}

// OnFinish registers fn to run once when the response is closed, with the
// text produced and whether generation ran to its end. Call before Increments.
func (r *Response) OnFinish(fn func(text string, complete bool)) {
	r.onFinish = fn
}

// Close releases the generation stream. Safe to call more than once and
// after Increments has finished.
func (r *Response) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	text, complete := r.text, r.complete
	r.mu.Unlock()

	if r.stop != nil {
		r.stop()
	}
	if r.onFinish != nil {
		r.onFinish(text, complete)
	}
}

// streamReader adapts a ChunkStream to Response.next.
type streamReader struct {
	stream llm.ChunkStream
	cancel context.CancelFunc
	onErr  func(error)
	once   sync.Once
}

func (s *streamReader) next() (string, bool, error) {
	delta, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return "", false, nil
	}
	if err != nil {
		if s.onErr != nil {
			s.onErr(err)
		}
		return "", false, err
	}
	return delta, true, nil
}

func (s *streamReader) close() {
	s.once.Do(func() {
		_ = s.stream.Close()
		s.cancel()
	})
}

// errEmptyGeneration marks a stream that ended before producing any text.
var errEmptyGeneration = errors.New("generation produced no text")

// readFirst pulls the first non-empty delta so failures before any text can
// still be degraded. A stream that ends with nothing is one of those failures.
func readFirst(stream llm.ChunkStream) (string, error) {
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", errEmptyGeneration
		}
		if err != nil {
			return "", err
		}
		if delta != "" {
			return delta, nil
		}
	}
}
