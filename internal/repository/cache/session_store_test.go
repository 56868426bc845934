package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"support-chatbot-be/pkg/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, policy store.HistoryPolicy) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, policy, time.Second), mr
}

func TestRedisSessionStore_IssueResolve(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{})
	ctx := context.Background()

	id, err := s.Issue(ctx, "user-1", 10*time.Minute)
	require.NoError(t, err)

	userID, ok, err := s.Resolve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, 10*time.Minute, mr.TTL("session:"+id))

	ids, err := s.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	_, ok, err = s.Resolve(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionStore_SlidingExpiration(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{})
	ctx := context.Background()
	ttl := time.Second

	id, err := s.Issue(ctx, "user-1", ttl)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		mr.FastForward(900 * time.Millisecond)
		_, ok, err := s.Resolve(ctx, id)
		require.NoError(t, err)
		require.True(t, ok, "iteration %d", i)
		require.NoError(t, s.Touch(ctx, id, ttl))
	}

	mr.FastForward(1100 * time.Millisecond)
	_, ok, err := s.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Touch(ctx, id, ttl))
	assert.False(t, mr.Exists("session:"+id), "touch must not resurrect an expired session")
}

func TestRedisSessionStore_ListSessionsPrunesExpired(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{})
	ctx := context.Background()

	short, err := s.Issue(ctx, "user-1", time.Second)
	require.NoError(t, err)
	long, err := s.Issue(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	ids, err := s.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{long}, ids)

	members, err := mr.SMembers("user:user-1:sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{long}, members, "expired id removed from the index")
	assert.NotContains(t, members, short)
}

func TestRedisSessionStore_CloseKeepsExpiry(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{})
	ctx := context.Background()

	id, err := s.Issue(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx, id))
	_, ok, err := s.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("session:"+id))

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, store.StatusClosed, sess.Status)
	assert.NotNil(t, sess.EndedAt)

	require.NoError(t, s.Close(ctx, "missing"))
	assert.False(t, mr.Exists("session:missing"))
}

func TestRedisSessionStore_RevokeIsIdempotent(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{})
	ctx := context.Background()

	id, err := s.Issue(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, id))
	require.NoError(t, s.Revoke(ctx, id))
	assert.False(t, mr.Exists("session:"+id))

	ids, err := s.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisSessionStore_HistoryWindowAndTTL(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{TTL: 5 * time.Minute, MaxMessages: 3})
	ctx := context.Background()

	msgs, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.AppendMessage(ctx, "s1", store.RoleUser, fmt.Sprintf("m%d", i)))
	}

	msgs, err = s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, store.Message{Role: store.RoleUser, Content: "m2", Sequence: 2}, msgs[0])
	assert.Equal(t, "m4", msgs[2].Content)
	assert.Equal(t, 5*time.Minute, mr.TTL("chat:s1"))

	again, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, msgs, again)
}

func TestRedisSessionStore_Unavailable(t *testing.T) {
	s, mr := newTestStore(t, store.HistoryPolicy{})
	mr.Close()

	_, err := s.Issue(context.Background(), "user-1", time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStoreUnavailable))

	_, _, err = s.Resolve(context.Background(), "x")
	assert.True(t, errors.Is(err, store.ErrStoreUnavailable))
}
