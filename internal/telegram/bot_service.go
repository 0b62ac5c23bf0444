// Package telegram bridges Telegram chats into the matchmaking service.
// Each chat is an anonymous user; commands drive the queue and plain text is
// relayed as chat messages.
package telegram

import (
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/localization"
	"chatroulette/backend/internal/log"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotService receives Telegram updates and routes them to the chat service.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	bot       Sender
	Chat      *chathub.Service
	Hub       *chathub.ManagerService
	Localizer *localization.Localizer

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewBotService authorizes against the Bot API with token.
func NewBotService(token string, chat *chathub.Service, hub *chathub.ManagerService, localizer *localization.Localizer) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	bot.Debug = false
	l := log.L()
	l.Info().Str("account", bot.Self.UserName).Msg("telegram bot authorized")

	s := newBotService(bot, chat, hub, localizer)
	s.BotAPI = bot
	return s, nil
}

func newBotService(bot Sender, chat *chathub.Service, hub *chathub.ManagerService, localizer *localization.Localizer) *BotService {
	return &BotService{
		bot:       bot,
		Chat:      chat,
		Hub:       hub,
		Localizer: localizer,
		clients:   make(map[int64]*Client),
	}
}

// Run polls for updates until ctx is done.
func (s *BotService) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	l := log.Ctx(ctx)
	l.Info().Msg("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			lang := ""
			if update.Message.From != nil {
				lang = update.Message.From.LanguageCode
			}
			s.HandleMessage(ctx, update.Message.Chat.ID, lang, extractMessageContent(update.Message))
		}
	}
}

// extractMessageContent returns the text or caption of a message.
func extractMessageContent(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// HandleMessage processes one incoming message from chatID.
func (s *BotService) HandleMessage(ctx context.Context, chatID int64, langCode, text string) {
	client, err := s.getOrCreateClient(chatID, langCode)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64("chat_id", chatID).Msg("failed to register telegram client")
		return
	}
	lang := client.language()
	userID := client.GetUserID()
	ctx = log.WithLogger(ctx, log.Ctx(ctx).With().Str(log.FieldUserID, userID).Logger())

	switch command(text) {
	case "start":
		s.reply(chatID, lang, "welcome")
	case "search":
		s.search(ctx, chatID, lang, userID)
	case "next":
		if err := s.leaveCurrent(ctx, userID); err != nil {
			s.fail(ctx, chatID, lang, err)
			return
		}
		s.search(ctx, chatID, lang, userID)
	case "stop":
		if err := s.leaveCurrent(ctx, userID); err != nil {
			s.fail(ctx, chatID, lang, err)
			return
		}
		s.reply(chatID, lang, "you_left")
	case "":
		s.relay(ctx, chatID, lang, userID, text)
	default:
		s.reply(chatID, lang, "unknown_command")
	}
}

// command returns the bot command in text without the leading slash and
// @botname suffix, or "" for plain text.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "unknown"
	}
	return strings.ToLower(cmd)
}

func (s *BotService) search(ctx context.Context, chatID int64, lang, userID string) {
	res, err := s.Chat.Matcher.Join(ctx, userID, false)
	if err != nil {
		s.fail(ctx, chatID, lang, err)
		return
	}
	if res.Queued {
		s.reply(chatID, lang, "searching")
	}
	// A match is announced to both sides through the hub.
}

func (s *BotService) leaveCurrent(ctx context.Context, userID string) error {
	session, err := s.Chat.Sessions.CurrentSession(ctx, userID)
	if err != nil {
		return err
	}
	sessionID := ""
	if session != nil {
		sessionID = session.ID
	}
	return s.Chat.Matcher.Leave(ctx, userID, sessionID)
}

func (s *BotService) relay(ctx context.Context, chatID int64, lang, userID, text string) {
	session, err := s.Chat.Sessions.CurrentSession(ctx, userID)
	if err != nil {
		s.fail(ctx, chatID, lang, err)
		return
	}
	if session == nil {
		s.reply(chatID, lang, "not_in_chat")
		return
	}

	_, err = s.Chat.Messages.Send(ctx, userID, session.ID, text)
	switch {
	case err == nil:
	case errors.Is(err, chathub.ErrEmptyContent):
		s.reply(chatID, lang, "message_empty")
	case errors.Is(err, chathub.ErrContentTooLong):
		s.reply(chatID, lang, "message_too_long")
	case errors.Is(err, chathub.ErrForbidden):
		s.reply(chatID, lang, "not_in_chat")
	default:
		s.fail(ctx, chatID, lang, err)
	}
}

func (s *BotService) getOrCreateClient(chatID int64, langCode string) (*Client, error) {
	lang := s.Localizer.Language(langCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[chatID]; ok {
		select {
		case <-c.Done():
			// dropped by the hub, register a fresh one
		default:
			if langCode != "" {
				c.SetLanguage(lang)
			}
			return c, nil
		}
	}

	c := NewClient(chatID, lang, s.bot, s.Chat, s.Localizer)
	if err := s.Hub.Register(c); err != nil {
		return nil, err
	}
	c.Run()
	s.clients[chatID] = c
	return c, nil
}

func (s *BotService) reply(chatID int64, lang, key string) {
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, s.Localizer.GetString(lang, key))); err != nil {
		l := log.L()
		l.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send telegram reply")
	}
}

func (s *BotService) fail(ctx context.Context, chatID int64, lang string, err error) {
	l := log.Ctx(ctx)
	l.Error().Err(err).Int64("chat_id", chatID).Msg("telegram command failed")
	s.reply(chatID, lang, "error")
}
