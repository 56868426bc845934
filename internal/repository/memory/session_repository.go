package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"support-chatbot-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

const lockStripes = 64

type history struct {
	messages []store.Message
	nextSeq  int64
}

// SessionRepository is an in-process store.SessionStore for single-instance runs and tests.
type SessionRepository struct {
	sessions  *cache.Cache
	histories *cache.Cache
	policy    store.HistoryPolicy

	// appends and session mutations for one key are serialized on its stripe
	stripes [lockStripes]sync.Mutex

	indexMu sync.Mutex
	index   map[string]map[string]struct{}
}

var _ store.SessionStore = (*SessionRepository)(nil)

func NewSessionRepository(policy store.HistoryPolicy) *SessionRepository {
	// Purge expired items every minute; expiry itself is checked on read.
	return &SessionRepository{
		sessions:  cache.New(cache.NoExpiration, time.Minute),
		histories: cache.New(cache.NoExpiration, time.Minute),
		policy:    policy,
		index:     make(map[string]map[string]struct{}),
	}
}

func (r *SessionRepository) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.stripes[h.Sum32()%lockStripes]
}

func (r *SessionRepository) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	id, err := store.NewSessionToken()
	if err != nil {
		return "", err
	}

	r.sessions.Set(id, &store.Session{
		ID:        id,
		UserID:    userID,
		Status:    store.StatusActive,
		CreatedAt: time.Now().UTC(),
	}, ttl)

	r.indexMu.Lock()
	if r.index[userID] == nil {
		r.index[userID] = make(map[string]struct{})
	}
	r.index[userID][id] = struct{}{}
	r.indexMu.Unlock()

	return id, nil
}

func (r *SessionRepository) Resolve(ctx context.Context, sessionID string) (string, bool, error) {
	x, found := r.sessions.Get(sessionID)
	if !found {
		return "", false, nil
	}
	s := x.(*store.Session)
	if s.Status != store.StatusActive {
		return "", false, nil
	}
	return s.UserID, true, nil
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	mu := r.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if x, found := r.sessions.Get(sessionID); found {
		// Replace fails when the item vanished in between, which is the documented no-op.
		_ = r.sessions.Replace(sessionID, x, ttl)
	}
	return nil
}

func (r *SessionRepository) Revoke(ctx context.Context, sessionID string) error {
	mu := r.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if x, found := r.sessions.Get(sessionID); found {
		s := x.(*store.Session)
		r.indexMu.Lock()
		delete(r.index[s.UserID], sessionID)
		r.indexMu.Unlock()
	}
	r.sessions.Delete(sessionID)
	return nil
}

func (r *SessionRepository) Close(ctx context.Context, sessionID string) error {
	mu := r.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	x, exp, found := r.sessions.GetWithExpiration(sessionID)
	if !found {
		return nil
	}
	closed := *x.(*store.Session)
	now := time.Now().UTC()
	closed.Status = store.StatusClosed
	closed.EndedAt = &now

	ttl := cache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return nil
		}
	}
	_ = r.sessions.Replace(sessionID, &closed, ttl)
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	x, found := r.sessions.Get(sessionID)
	if !found {
		return nil, nil
	}
	s := *x.(*store.Session)
	return &s, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, userID string) ([]string, error) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	ids := make([]string, 0, len(r.index[userID]))
	for id := range r.index[userID] {
		if _, found := r.sessions.Get(id); !found {
			delete(r.index[userID], id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	mu := r.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	h := &history{}
	if x, found := r.histories.Get(sessionID); found {
		h = x.(*history)
	}

	h.nextSeq++
	msgs := append(h.messages, store.Message{Role: role, Content: content, Sequence: h.nextSeq})
	if limit := r.policy.MaxMessages; limit > 0 && len(msgs) > limit {
		msgs = append([]store.Message(nil), msgs[len(msgs)-limit:]...)
	}
	h.messages = msgs

	r.histories.Set(sessionID, h, r.historyTTL())
	return nil
}

func (r *SessionRepository) History(ctx context.Context, sessionID string) ([]store.Message, error) {
	mu := r.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	x, found := r.histories.Get(sessionID)
	if !found {
		return []store.Message{}, nil
	}
	h := x.(*history)
	out := make([]store.Message, len(h.messages))
	copy(out, h.messages)
	return out, nil
}

func (r *SessionRepository) historyTTL() time.Duration {
	if r.policy.TTL <= 0 {
		return cache.NoExpiration
	}
	return r.policy.TTL
}
