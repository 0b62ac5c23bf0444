package storage_test

import (
	"chatroulette/backend/internal/config"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.Service {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return storage.NewStorageService(db)
}

func TestWaitingQueue_OrderedByJoinTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "late", JoinedAt: base.Add(2 * time.Second)}))
	require.NoError(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "early", JoinedAt: base}))
	require.NoError(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "middle", JoinedAt: base.Add(time.Second), WantsVideo: true}))

	entries, err := s.GetWaitingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "early", entries[0].UserID)
	assert.Equal(t, "middle", entries[1].UserID)
	assert.True(t, entries[1].WantsVideo)
	assert.Equal(t, "late", entries[2].UserID)
}

func TestWaitingQueue_OneEntryPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "user_A"}))
	assert.Error(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "user_A"}), "unique index must reject a second entry")

	waiting, err := s.IsUserWaiting(ctx, "user_A")
	require.NoError(t, err)
	assert.True(t, waiting)

	removed, err := s.RemoveFromWaitingQueue(ctx, "user_A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	waiting, err = s.IsUserWaiting(ctx, "user_A")
	require.NoError(t, err)
	assert.False(t, waiting)
}

func TestRemoveWaitingEntry_CompareAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &models.WaitingEntry{UserID: "user_A"}
	require.NoError(t, s.AddToWaitingQueue(ctx, entry))

	ok, err := s.RemoveWaitingEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, ok, "first delete wins")

	ok, err = s.RemoveWaitingEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete finds nothing")
}

func TestPurgeWaitingBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "stale", JoinedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "fresh", JoinedAt: now}))

	purged, err := s.PurgeWaitingBefore(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	entries, err := s.GetWaitingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].UserID)
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := &models.ChatSession{UserA: "user_A", UserB: "user_B", Active: true, HasVideo: true}
	require.NoError(t, s.SaveSession(ctx, session))
	require.NotEmpty(t, session.ID)

	got, err := s.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user_A", got.UserA)
	assert.True(t, got.HasVideo)
	assert.Nil(t, got.EndedAt)

	for _, user := range []string{"user_A", "user_B"} {
		active, err := s.GetActiveSessionsForUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, active, 1, user)
	}

	ended, err := s.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, ended)

	ended, err = s.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, ended, "ending twice is a no-op")

	got, err = s.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.NotNil(t, got.EndedAt)

	active, err := s.GetActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGetSessionByID_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSessionByID(context.Background(), "does-not-exist")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestChatHistory_CreationOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, s.SaveMessage(ctx, &models.Message{SessionID: "s1", AuthorID: "user_A", Content: content}))
	}
	require.NoError(t, s.SaveMessage(ctx, &models.Message{SessionID: "s2", AuthorID: "user_C", Content: "elsewhere"}))

	history, err := s.GetChatHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Content)
	assert.Equal(t, "two", history[1].Content)
	assert.Equal(t, "three", history[2].Content)

	empty, err := s.GetChatHistory(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSignals_ScopedToRecipient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSignal(ctx, &models.SignalingMessage{SessionID: "s1", FromUserID: "a", ToUserID: "b", Type: models.SignalOffer, Payload: `{"sdp":"x"}`}))
	require.NoError(t, s.SaveSignal(ctx, &models.SignalingMessage{SessionID: "s1", FromUserID: "b", ToUserID: "a", Type: models.SignalAnswer, Payload: `{"sdp":"y"}`}))
	require.NoError(t, s.SaveSignal(ctx, &models.SignalingMessage{SessionID: "s1", FromUserID: "a", ToUserID: "b", Type: models.SignalICECandidate, Payload: `{"candidate":"c"}`}))

	forB, err := s.GetSignalsFor(ctx, "s1", "b")
	require.NoError(t, err)
	require.Len(t, forB, 2)
	assert.Equal(t, models.SignalOffer, forB[0].Type)
	assert.Equal(t, `{"sdp":"x"}`, forB[0].Payload)
	assert.Equal(t, models.SignalICECandidate, forB[1].Type)

	again, err := s.GetSignalsFor(ctx, "s1", "b")
	require.NoError(t, err)
	assert.Equal(t, forB, again, "reads never consume")
}

func TestTransaction_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx storage.Storage) error {
		require.NoError(t, tx.AddToWaitingQueue(ctx, &models.WaitingEntry{UserID: "user_A"}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	waiting, err := s.IsUserWaiting(ctx, "user_A")
	require.NoError(t, err)
	assert.False(t, waiting)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := storage.Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}
