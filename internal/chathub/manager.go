package chathub

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/metrics"
	"chatroulette/backend/internal/models"
	"context"
	"errors"
	"sync"
)

// ErrHubStopped is returned by hub operations after Run has returned.
var ErrHubStopped = errors.New("realtime hub stopped")

// ManagerService is the in-process realtime hub. It keeps one client per
// user and fans events out to them; it implements Notifier.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	eventCh      chan models.Event

	done chan struct{}
}

func NewManagerService() *ManagerService {
	return &ManagerService{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		eventCh:      make(chan models.Event, 256),
		done:         make(chan struct{}),
	}
}

// Run serves registrations and events until ctx is done, then closes every
// remaining client.
func (m *ManagerService) Run(ctx context.Context) {
	l := log.Ctx(ctx)
	l.Info().Msg("realtime hub started")
	defer func() {
		close(m.done)
		m.mu.Lock()
		for id, c := range m.clients {
			delete(m.clients, id)
			c.Close()
		}
		m.mu.Unlock()
		metrics.RealtimeClients.Set(0)
		l.Info().Msg("realtime hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.RegisterCh:
			m.register(ctx, c)
		case c := <-m.UnregisterCh:
			m.unregister(ctx, c)
		case ev := <-m.eventCh:
			m.dispatch(ctx, ev)
		}
	}
}

// Register hands c to the hub. A previous client of the same user is closed.
func (m *ManagerService) Register(c Client) error {
	select {
	case m.RegisterCh <- c:
		return nil
	case <-m.done:
		return ErrHubStopped
	}
}

// Unregister removes c if it is still the user's current client.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Notify queues ev for local delivery.
func (m *ManagerService) Notify(ctx context.Context, ev models.Event) error {
	select {
	case <-m.done:
		return ErrHubStopped
	default:
	}

	select {
	case m.eventCh <- ev:
		return nil
	case <-m.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected reports whether userID has a registered client.
func (m *ManagerService) Connected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

func (m *ManagerService) register(ctx context.Context, c Client) {
	m.mu.Lock()
	prev, ok := m.clients[c.GetUserID()]
	m.clients[c.GetUserID()] = c
	n := len(m.clients)
	m.mu.Unlock()

	if ok && prev != c {
		prev.Close()
	}
	metrics.RealtimeClients.Set(float64(n))
	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldUserID, c.GetUserID()).Msg("client registered")
}

func (m *ManagerService) unregister(ctx context.Context, c Client) {
	m.mu.Lock()
	cur, ok := m.clients[c.GetUserID()]
	if ok && cur == c {
		delete(m.clients, c.GetUserID())
	}
	n := len(m.clients)
	m.mu.Unlock()

	if ok && cur == c {
		c.Close()
		metrics.RealtimeClients.Set(float64(n))
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldUserID, c.GetUserID()).Msg("client unregistered")
	}
}

func (m *ManagerService) dispatch(ctx context.Context, ev models.Event) {
	m.mu.RLock()
	c, ok := m.clients[ev.UserID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.GetSendChannel() <- ev:
	default:
		metrics.EventsDropped.Inc()
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldUserID, ev.UserID).Str(log.FieldEvent, ev.Type).Msg("client too slow, dropping connection")
		m.unregister(ctx, c)
	}
}
