package chathub_test

import (
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/config"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) For(userID string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, ev := range r.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type testEnv struct {
	svc      *chathub.Service
	store    *storage.Service
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := storage.NewStorageService(db)
	notifier := &recordingNotifier{}
	svc, err := chathub.NewService(chathub.Options{
		Store:            store,
		Locker:           storage.NewLocalLocker(),
		Notifier:         notifier,
		MaxMessageLength: 16,
	})
	require.NoError(t, err)
	return &testEnv{svc: svc, store: store, notifier: notifier}
}

// pair queues a, then joins b, and returns the resulting session.
func (e *testEnv) pair(t *testing.T, a, b string, video bool) *models.ChatSession {
	t.Helper()
	ctx := context.Background()
	res, err := e.svc.Matcher.Join(ctx, a, video)
	require.NoError(t, err)
	require.True(t, res.Queued)
	res, err = e.svc.Matcher.Join(ctx, b, video)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	return res.Session
}

// MockStorage overrides the methods a test sets expectations on. Calling any
// other Storage method panics on the nil embedded interface.
type MockStorage struct {
	storage.Storage
	mock.Mock
}

func (m *MockStorage) Transaction(ctx context.Context, fn func(tx storage.Storage) error) error {
	return fn(m)
}

func (m *MockStorage) GetActiveSessionsForUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatSession), args.Error(1)
}

func (m *MockStorage) GetSessionByID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockStorage) RemoveFromWaitingQueue(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
