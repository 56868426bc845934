package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"support-chatbot-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_IssueResolve(t *testing.T) {
	repo := NewSessionRepository(store.HistoryPolicy{TTL: time.Minute, MaxMessages: 10})
	ctx := context.Background()

	id, err := repo.Issue(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(id), 43, "token should carry 32 random bytes")

	userID, ok, err := repo.Resolve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)

	_, ok, err = repo.Resolve(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := repo.Issue(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	ids, err := repo.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{id, other}, ids)
}

func TestSessionRepository_SlidingExpiration(t *testing.T) {
	repo := NewSessionRepository(store.HistoryPolicy{})
	ctx := context.Background()
	ttl := 120 * time.Millisecond

	id, err := repo.Issue(ctx, "user-1", ttl)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		time.Sleep(70 * time.Millisecond)
		_, ok, err := repo.Resolve(ctx, id)
		require.NoError(t, err)
		require.True(t, ok, "session accessed within its ttl must stay alive (iteration %d)", i)
		require.NoError(t, repo.Touch(ctx, id, ttl))
	}

	time.Sleep(ttl + 50*time.Millisecond)
	_, ok, err := repo.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// touching an expired session is a no-op
	require.NoError(t, repo.Touch(ctx, id, ttl))
	_, ok, _ = repo.Resolve(ctx, id)
	assert.False(t, ok)
}

func TestSessionRepository_RevokeAndClose(t *testing.T) {
	repo := NewSessionRepository(store.HistoryPolicy{})
	ctx := context.Background()

	id, err := repo.Issue(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, repo.Close(ctx, id))
	_, ok, _ := repo.Resolve(ctx, id)
	assert.False(t, ok, "closed session must not resolve")

	sess, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, store.StatusClosed, sess.Status)
	assert.NotNil(t, sess.EndedAt)

	require.NoError(t, repo.Revoke(ctx, id))
	require.NoError(t, repo.Revoke(ctx, id), "revoke is idempotent")

	sess, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSessionRepository_HistoryOrderAndWindow(t *testing.T) {
	repo := NewSessionRepository(store.HistoryPolicy{TTL: time.Minute, MaxMessages: 3})
	ctx := context.Background()

	empty, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.AppendMessage(ctx, "s1", store.RoleUser, fmt.Sprintf("m%d", i)))
	}

	first, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	second, err := repo.History(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "m3", first[0].Content)
	assert.Equal(t, "m5", first[2].Content)
	assert.Equal(t, int64(5), first[2].Sequence)
}

func TestSessionRepository_ConcurrentAppendsKeepSequence(t *testing.T) {
	repo := NewSessionRepository(store.HistoryPolicy{TTL: time.Minute})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.AppendMessage(ctx, "s1", store.RoleUser, fmt.Sprintf("m%d", i))
		}(i)
	}
	wg.Wait()

	msgs, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 50)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Sequence)
	}
}
