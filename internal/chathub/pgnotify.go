package chathub

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostgresChannel is the LISTEN/NOTIFY channel carrying realtime events.
const PostgresChannel = "chat_events"

// PostgresNotifier sends events through pg_notify. Payloads are lean events
// because NOTIFY is limited to 8000 bytes; receivers re-read state through the API.
type PostgresNotifier struct {
	db *gorm.DB
}

func NewPostgresNotifier(db *gorm.DB) *PostgresNotifier {
	return &PostgresNotifier{db: db}
}

func (n *PostgresNotifier) Notify(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(ev.Lean())
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", PostgresChannel, string(data)).Error
}

// ListenPostgres LISTENs on PostgresChannel with its own connection and hands
// decoded events to local until ctx is done.
func ListenPostgres(ctx context.Context, dsn string, local Notifier) error {
	l := log.Ctx(ctx)
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.Warn().Err(err).Int("event", int(ev)).Msg("postgres listener problem")
		}
	})
	defer listener.Close()

	if err := listener.Listen(PostgresChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", PostgresChannel, err)
	}
	l.Info().Str("channel", PostgresChannel).Msg("listening for postgres events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect
			if n == nil {
				continue
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				l.Warn().Err(err).Msg("failed to decode postgres event")
				continue
			}
			if err := local.Notify(ctx, ev); err != nil && ctx.Err() == nil {
				l.Warn().Err(err).Str(log.FieldUserID, ev.UserID).Msg("failed to dispatch postgres event")
			}
		case <-time.After(90 * time.Second):
			go func() { _ = listener.Ping() }()
		}
	}
}
