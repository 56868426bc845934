package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"support-chatbot-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

// appendHistoryScript appends one entry to a session history atomically.
// KEYS[1] = history list key (e.g. "chat:<session>")
// KEYS[2] = sequence counter key
// ARGV[1] = role
// ARGV[2] = content
// ARGV[3] = ttl in milliseconds
// ARGV[4] = max retained entries (0 = unbounded)
var appendHistoryScript = redis.NewScript(`
local seq = redis.call("INCR", KEYS[2])
local entry = cjson.encode({seq = seq, role = ARGV[1], content = ARGV[2]})
redis.call("RPUSH", KEYS[1], entry)

local max = tonumber(ARGV[4])
if max > 0 then
    redis.call("LTRIM", KEYS[1], -max, -1)
end

local ttl = tonumber(ARGV[3])
if ttl > 0 then
    redis.call("PEXPIRE", KEYS[1], ttl)
    redis.call("PEXPIRE", KEYS[2], ttl)
end

return seq
`)

// closeSessionScript marks an existing session closed without touching its expiry.
// KEYS[1] = session hash key
// ARGV[1] = ended_at (RFC3339)
var closeSessionScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
    return 0
end
redis.call("HSET", KEYS[1], "status", "closed", "ended_at", ARGV[1])
return 1
`)

// RedisSessionStore implements store.SessionStore on redis.
type RedisSessionStore struct {
	client  redis.UniversalClient
	policy  store.HistoryPolicy
	timeout time.Duration
}

var _ store.SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore wraps an existing client; the caller owns its lifecycle.
func NewRedisSessionStore(client redis.UniversalClient, policy store.HistoryPolicy, timeout time.Duration) *RedisSessionStore {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisSessionStore{client: client, policy: policy, timeout: timeout}
}

func sessionKey(id string) string { return "session:" + id }
func historyKey(id string) string { return "chat:" + id }
func sequenceKey(id string) string { return "chat:" + id + ":seq" }
func userSessionsKey(id string) string { return "user:" + id + ":sessions" }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrStoreUnavailable, op, err)
}

func (s *RedisSessionStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := store.NewSessionToken()
	if err != nil {
		return "", err
	}

	key := sessionKey(id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", userID,
			"status", store.StatusActive,
			"created_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, userSessionsKey(userID), id)
		return nil
	})
	if err != nil {
		return "", unavailable("issue", err)
	}
	return id, nil
}

func (s *RedisSessionStore) Resolve(ctx context.Context, sessionID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vals, err := s.client.HMGet(ctx, sessionKey(sessionID), "user_id", "status").Result()
	if err != nil {
		return "", false, unavailable("resolve", err)
	}
	userID, _ := vals[0].(string)
	status, _ := vals[1].(string)
	if userID == "" || status != store.StatusActive {
		return "", false, nil
	}
	return userID, true, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// PEXPIRE on a missing key returns false; that is the no-op case.
	if err := s.client.PExpire(ctx, sessionKey(sessionID), ttl).Err(); err != nil {
		return unavailable("touch", err)
	}
	return nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userID, err := s.client.HGet(ctx, sessionKey(sessionID), "user_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("revoke", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		if userID != "" {
			pipe.SRem(ctx, userSessionsKey(userID), sessionID)
		}
		return nil
	})
	if err != nil {
		return unavailable("revoke", err)
	}
	return nil
}

func (s *RedisSessionStore) Close(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	endedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := closeSessionScript.Run(ctx, s.client, []string{sessionKey(sessionID)}, endedAt).Err(); err != nil {
		return unavailable("close", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, unavailable("get", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sess := &store.Session{
		ID:     sessionID,
		UserID: fields["user_id"],
		Status: fields["status"],
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		sess.CreatedAt = t
	}
	if raw, ok := fields["ended_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			sess.EndedAt = &t
		}
	}
	return sess, nil
}

func (s *RedisSessionStore) ListSessions(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, unavailable("list sessions", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	// sessions leave by TTL without touching the index, so prune it here
	exists := make([]*redis.IntCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list sessions", err)
	}

	live := make([]string, 0, len(ids))
	var expired []interface{}
	for i, id := range ids {
		if exists[i].Val() > 0 {
			live = append(live, id)
		} else {
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		if err := s.client.SRem(ctx, userSessionsKey(userID), expired...).Err(); err != nil {
			return nil, unavailable("list sessions", err)
		}
	}
	return live, nil
}

func (s *RedisSessionStore) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys := []string{historyKey(sessionID), sequenceKey(sessionID)}
	err := appendHistoryScript.Run(ctx, s.client, keys,
		role, content, s.policy.TTL.Milliseconds(), s.policy.MaxMessages,
	).Err()
	if err != nil {
		return unavailable("append message", err)
	}
	return nil
}

func (s *RedisSessionStore) History(ctx context.Context, sessionID string) ([]store.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, unavailable("history", err)
	}

	out := make([]store.Message, 0, len(raw))
	for _, entry := range raw {
		var m store.Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
