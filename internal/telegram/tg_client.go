package telegram

import (
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/localization"
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UserIDPrefix namespaces Telegram chats in the shared identity space.
const UserIDPrefix = "tg:"

// UserIDFor returns the chat identity of a Telegram chat.
func UserIDFor(chatID int64) string {
	return UserIDPrefix + strconv.FormatInt(chatID, 10)
}

// ChatIDFor parses a Telegram identity back into a chat ID.
func ChatIDFor(userID string) (int64, bool) {
	if !strings.HasPrefix(userID, UserIDPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(userID, UserIDPrefix), 10, 64)
	return id, err == nil
}

// Sender is the part of the Bot API the bridge needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client renders hub events for one Telegram chat. It implements chathub.Client.
type Client struct {
	UserID string
	ChatID int64
	Send   chan models.Event

	bot       Sender
	chat      *chathub.Service
	localizer *localization.Localizer

	mu   sync.Mutex
	lang string
	// last partner message delivered per session, used to resolve lean events
	lastSeen map[string]uint
	done     chan struct{}
}

func NewClient(chatID int64, lang string, bot Sender, chat *chathub.Service, localizer *localization.Localizer) *Client {
	return &Client{
		UserID:    UserIDFor(chatID),
		ChatID:    chatID,
		Send:      make(chan models.Event, 32),
		bot:       bot,
		chat:      chat,
		localizer: localizer,
		lang:      lang,
		lastSeen:  make(map[string]uint),
		done:      make(chan struct{}),
	}
}

func (c *Client) GetUserID() string                   { return c.UserID }
func (c *Client) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the write pump. Updates are read centrally by BotService.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	close(c.Send)
}

// Done is closed once the write pump has drained.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) SetLanguage(lang string) {
	c.mu.Lock()
	c.lang = lang
	c.mu.Unlock()
}

func (c *Client) language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

func (c *Client) writePump() {
	defer close(c.done)
	for ev := range c.Send {
		c.render(context.Background(), ev)
	}
}

func (c *Client) render(ctx context.Context, ev models.Event) {
	switch ev.Type {
	case models.EventMatchFound:
		// one active session per user, so older cursors are dead
		c.mu.Lock()
		c.lastSeen = make(map[string]uint)
		c.mu.Unlock()
		c.reply(c.localizer.GetString(c.language(), "match_found"))
	case models.EventSessionEnded:
		c.mu.Lock()
		delete(c.lastSeen, ev.SessionID)
		c.mu.Unlock()
		c.reply(c.localizer.GetString(c.language(), "partner_left"))
	case models.EventMessage:
		for _, msg := range c.pendingMessages(ctx, ev) {
			c.reply(msg.Content)
		}
	}
	// Signals have no Telegram rendering: the bridge is text only.
}

// pendingMessages returns the partner messages of ev that were not delivered yet.
// Lean events carry no body, so the history is re-read.
func (c *Client) pendingMessages(ctx context.Context, ev models.Event) []models.Message {
	c.mu.Lock()
	last := c.lastSeen[ev.SessionID]
	c.mu.Unlock()

	var candidates []models.Message
	if ev.Message != nil {
		candidates = []models.Message{*ev.Message}
	} else if c.chat != nil {
		history, err := c.chat.Messages.List(ctx, c.UserID, ev.SessionID)
		if err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldUserID, c.UserID).Msg("failed to load messages for telegram")
			return nil
		}
		candidates = history
	}

	out := make([]models.Message, 0, len(candidates))
	for _, m := range candidates {
		if m.ID <= last || m.AuthorID == c.UserID {
			continue
		}
		out = append(out, m)
		last = m.ID
	}

	c.mu.Lock()
	c.lastSeen[ev.SessionID] = last
	c.mu.Unlock()
	return out
}

func (c *Client) reply(text string) {
	if _, err := c.bot.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
		l := log.L()
		l.Warn().Err(err).Int64("chat_id", c.ChatID).Msg("failed to send telegram message")
	}
}
