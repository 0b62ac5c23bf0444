package chathub_test

import (
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestJoin_QueuesThenMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Matcher.Join(ctx, "user_A", false)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Nil(t, res.Session)

	waiting, err := env.svc.Matcher.IsWaiting(ctx, "user_A")
	require.NoError(t, err)
	assert.True(t, waiting)

	res, err = env.svc.Matcher.Join(ctx, "user_B", false)
	require.NoError(t, err)
	assert.False(t, res.Queued)
	require.NotNil(t, res.Session)
	assert.Equal(t, "user_A", res.Session.UserA, "the waiter is the initiator")
	assert.Equal(t, "user_B", res.Session.UserB)
	assert.True(t, res.Session.Active)
	assert.False(t, res.Session.HasVideo)

	for _, user := range []string{"user_A", "user_B"} {
		waiting, err := env.svc.Matcher.IsWaiting(ctx, user)
		require.NoError(t, err)
		assert.False(t, waiting, user)

		events := env.notifier.For(user)
		require.Len(t, events, 1, user)
		assert.Equal(t, models.EventMatchFound, events[0].Type)
		assert.Equal(t, res.Session.ID, events[0].SessionID)
	}
}

func TestJoin_VideoMatching(t *testing.T) {
	tests := []struct {
		name         string
		waiterVideo  bool
		joinerVideo  bool
		wantMatch    bool
		wantHasVideo bool
	}{
		{name: "both text", wantMatch: true},
		{name: "text joiner takes video waiter", waiterVideo: true, wantMatch: true},
		{name: "video joiner skips text waiter", joinerVideo: true, wantMatch: false},
		{name: "both video", waiterVideo: true, joinerVideo: true, wantMatch: true, wantHasVideo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			_, err := env.svc.Matcher.Join(ctx, "waiter", tt.waiterVideo)
			require.NoError(t, err)
			res, err := env.svc.Matcher.Join(ctx, "joiner", tt.joinerVideo)
			require.NoError(t, err)

			if !tt.wantMatch {
				assert.True(t, res.Queued)
				state, err := env.svc.DebugState(ctx, "joiner")
				require.NoError(t, err)
				assert.Len(t, state.Waiting, 2)
				return
			}
			require.NotNil(t, res.Session)
			assert.Equal(t, tt.wantHasVideo, res.Session.HasVideo)
		})
	}
}

func TestJoin_OldestCompatibleWaiterFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Seeded directly: waiters joining through the matcher would pair up.
	base := time.Now().Add(-time.Minute)
	for _, e := range []models.WaitingEntry{
		{UserID: "third", WantsVideo: true, JoinedAt: base.Add(2 * time.Second)},
		{UserID: "first", WantsVideo: true, JoinedAt: base},
		{UserID: "second", WantsVideo: false, JoinedAt: base.Add(time.Second)},
	} {
		entry := e
		require.NoError(t, env.store.AddToWaitingQueue(ctx, &entry))
	}

	res, err := env.svc.Matcher.Join(ctx, "text-joiner", false)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "first", res.Session.UserA)
	assert.False(t, res.Session.HasVideo)

	// second is older than third but does not want video
	res, err = env.svc.Matcher.Join(ctx, "video-joiner", true)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "third", res.Session.UserA)
	assert.True(t, res.Session.HasVideo)

	waiting, err := env.svc.Matcher.IsWaiting(ctx, "second")
	require.NoError(t, err)
	assert.True(t, waiting)
}

func TestJoin_RejoinIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := env.svc.Matcher.Join(ctx, "user_A", i%2 == 0)
		require.NoError(t, err)
		assert.True(t, res.Queued, "a user never matches their own entry")
	}

	state, err := env.svc.DebugState(ctx, "user_A")
	require.NoError(t, err)
	require.Len(t, state.Waiting, 1)
	assert.True(t, state.Waiting[0].WantsVideo, "the latest request wins")
}

func TestJoin_EndsPreviousSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.pair(t, "user_A", "user_B", false)
	env.notifier.Reset()

	res, err := env.svc.Matcher.Join(ctx, "user_B", false)
	require.NoError(t, err)
	assert.True(t, res.Queued)

	old, err := env.store.GetSessionByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.Active)
	assert.NotNil(t, old.EndedAt)

	current, err := env.svc.Sessions.CurrentSession(ctx, "user_A")
	require.NoError(t, err)
	assert.Nil(t, current)

	events := env.notifier.For("user_A")
	require.Len(t, events, 1)
	assert.Equal(t, models.EventSessionEnded, events[0].Type)
	assert.Equal(t, first.ID, events[0].SessionID)

	// user_A is not waiting, so user_C queues behind user_B and then matches it.
	res, err = env.svc.Matcher.Join(ctx, "user_C", false)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "user_B", res.Session.UserA)
	assert.NotEqual(t, first.ID, res.Session.ID, "sessions are never resumed")
}

func TestJoin_ConcurrentJoinsNeverShareAMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const users = 20

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.svc.Matcher.Join(ctx, id, false)
			errs <- err
		}(fmt.Sprintf("user_%02d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	state, err := env.svc.DebugState(ctx, "observer")
	require.NoError(t, err)
	assert.Empty(t, state.Waiting, "an even number of compatible joiners all get matched")
	assert.Len(t, state.ActiveSessions, users/2)

	seen := map[string]int{}
	for _, s := range state.ActiveSessions {
		seen[s.UserA]++
		seen[s.UserB]++
	}
	assert.Len(t, seen, users)
	for user, n := range seen {
		assert.Equal(t, 1, n, "user %s must hold exactly one active session", user)
	}
}

func TestJoin_ConcurrentPairFromEmptyQueue(t *testing.T) {
	for i := 0; i < 10; i++ {
		env := newTestEnv(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make([]chathub.JoinResult, 2)
		for j, user := range []string{"user_A", "user_B"} {
			wg.Add(1)
			go func(j int, user string) {
				defer wg.Done()
				res, err := env.svc.Matcher.Join(ctx, user, false)
				assert.NoError(t, err)
				results[j] = res
			}(j, user)
		}
		wg.Wait()

		queued := 0
		for _, r := range results {
			if r.Queued {
				queued++
			}
		}
		assert.Equal(t, 1, queued, "exactly one joiner waits, the other matches it")
	}
}

func TestJoin_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Matcher.Join(context.Background(), "", false)

	assert.ErrorIs(t, err, chathub.ErrUnauthenticated)
}

func TestJoin_StoreFailurePropagates(t *testing.T) {
	store := new(MockStorage)
	boom := errors.New("connection refused")
	store.On("GetActiveSessionsForUser", mock.Anything, "user_A").Return(nil, boom)
	matcher := chathub.NewMatcherService(store, nil, nil)

	_, err := matcher.Join(context.Background(), "user_A", false)

	assert.ErrorIs(t, err, boom)
	store.AssertExpectations(t)
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.pair(t, "user_A", "user_B", false)
	env.notifier.Reset()

	require.NoError(t, env.svc.Matcher.Leave(ctx, "user_B", session.ID))

	got, err := env.store.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	events := env.notifier.For("user_A")
	require.Len(t, events, 1)
	assert.Equal(t, models.EventSessionEnded, events[0].Type)
	assert.Empty(t, env.notifier.For("user_B"))

	t.Run("already ended is a no-op", func(t *testing.T) {
		env.notifier.Reset()
		assert.NoError(t, env.svc.Matcher.Leave(ctx, "user_A", session.ID))
		assert.Empty(t, env.notifier.For("user_B"))
	})

	t.Run("nonexistent session is a no-op", func(t *testing.T) {
		assert.NoError(t, env.svc.Matcher.Leave(ctx, "user_A", "missing"))
	})
}

func TestLeave_StrangerCannotEndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.pair(t, "user_A", "user_B", false)

	require.NoError(t, env.svc.Matcher.Leave(ctx, "mallory", session.ID))

	got, err := env.store.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestLeave_AlwaysPurgesOwnWaitingEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Matcher.Join(ctx, "user_A", false)
	require.NoError(t, err)

	require.NoError(t, env.svc.Matcher.Leave(ctx, "user_A", "not-a-session"))

	waiting, err := env.svc.Matcher.IsWaiting(ctx, "user_A")
	require.NoError(t, err)
	assert.False(t, waiting)
}

func TestLeave_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	assert.ErrorIs(t, env.svc.Matcher.Leave(context.Background(), "", "s1"), chathub.ErrUnauthenticated)
	_, err := env.svc.Matcher.IsWaiting(context.Background(), "")
	assert.ErrorIs(t, err, chathub.ErrUnauthenticated)
}

func TestPurgeStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "abandoned", JoinedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, env.store.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "fresh", JoinedAt: time.Now()}))

	n, err := env.svc.Matcher.PurgeStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	waiting, err := env.svc.Matcher.IsWaiting(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, waiting)

	waiting, err = env.svc.Matcher.IsWaiting(ctx, "abandoned")
	require.NoError(t, err)
	assert.False(t, waiting)
}

func TestRunSweeper_DisabledWithoutTTL(t *testing.T) {
	env := newTestEnv(t)
	done := make(chan struct{})

	go func() {
		env.svc.Matcher.RunSweeper(context.Background(), time.Millisecond, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper with zero ttl must return immediately")
	}
}

func TestRunSweeper_PurgesUntilCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, env.store.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "abandoned", JoinedAt: time.Now().Add(-time.Hour)}))

	done := make(chan struct{})
	go func() {
		env.svc.Matcher.RunSweeper(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		waiting, err := env.store.IsUserWaiting(context.Background(), "abandoned")
		return err == nil && !waiting
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
