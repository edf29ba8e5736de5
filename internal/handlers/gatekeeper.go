package handlers

import (
	"context"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/bot"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

// Gatekeeper turns join messages and captcha button presses into admission calls.
type Gatekeeper struct {
	guard     Guard
	messenger Messenger
	botID     int64
}

func NewGatekeeper(guard Guard, messenger Messenger, botID int64) *Gatekeeper {
	return &Gatekeeper{guard: guard, messenger: messenger, botID: botID}
}

func (g *Gatekeeper) getLogEntry() *log.Entry {
	return log.WithField("handler", "gatekeeper")
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	switch {
	case u.CallbackQuery != nil:
		if _, _, ok := parseCaptchaCallback(u.CallbackQuery.Data); !ok {
			return true, nil
		}
		return false, g.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && len(u.Message.NewChatMembers) > 0:
		return false, g.handleJoin(ctx, u.Message)
	case u.Message != nil && u.Message.LeftChatMember != nil:
		// the chat_member update for the same departure carries the notice
		g.guard.OnMemberLeft(ctx, u.Message.Chat.ID, u.Message.LeftChatMember.ID, false)
		return false, nil
	}
	return true, nil
}

func (g *Gatekeeper) handleJoin(ctx context.Context, msg *api.Message) error {
	entry := g.getLogEntry().WithFields(log.Fields{"method": "handleJoin", "chat": msg.Chat.ID})

	for i := range msg.NewChatMembers {
		member := msg.NewChatMembers[i]
		if member.IsBot || member.ID == g.botID {
			continue
		}
		admission, err := g.guard.OnMemberJoined(ctx, moderation.Join{
			ChatID:        msg.Chat.ID,
			UserID:        member.ID,
			Name:          bot.GetFullName(&member),
			Language:      member.LanguageCode,
			JoinMessageID: msg.MessageID,
		})
		if err != nil {
			return errors.WithMessagef(err, "admit %d", member.ID)
		}
		entry.WithFields(log.Fields{
			"user":      member.ID,
			"admission": admission.Kind.String(),
			"reason":    admission.Reason,
		}).Debug("member admitted")
		if admission.Kind == moderation.AdmitLeave {
			return nil
		}
	}
	return nil
}

func parseCaptchaCallback(data string) (int64, string, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != moderation.CaptchaCallbackPrefix || parts[2] == "" {
		return 0, "", false
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return userID, parts[2], true
}

func (g *Gatekeeper) handleCallback(ctx context.Context, cq *api.CallbackQuery) error {
	entry := g.getLogEntry().WithField("method", "handleCallback")
	if cq.Message == nil || cq.From == nil {
		return nil
	}
	chatID := cq.Message.Chat.ID
	lang := chatLanguage(ctx, g.guard, chatID)
	targetID, answer, _ := parseCaptchaCallback(cq.Data)

	if cq.From.ID != targetID {
		g.answer(ctx, entry, cq.ID, i18n.Get("This challenge isn't your concern", lang))
		return nil
	}

	resolution, err := g.guard.OnCaptchaAnswer(ctx, moderation.CaptchaAnswer{
		ChatID:  chatID,
		UserID:  targetID,
		Answer:  answer,
		Pressed: true,
	})

	var text string
	switch resolution {
	case moderation.ResolutionVerified:
		text = i18n.Get("Welcome, friend!", lang)
	case moderation.ResolutionFailed:
		text = i18n.Get("Wrong answer", lang)
	case moderation.ResolutionExpired:
		text = i18n.Get("Too late", lang)
	case moderation.ResolutionStale:
		text = i18n.Get("This challenge is no longer active", lang)
	}
	g.answer(ctx, entry, cq.ID, text)

	if errors.Is(err, ngerrors.ErrStaleState) {
		return nil
	}
	return err
}

func (g *Gatekeeper) answer(ctx context.Context, entry *log.Entry, callbackID, text string) {
	if err := g.messenger.AnswerCallback(ctx, callbackID, text); err != nil {
		entry.WithField("error", err.Error()).Warn("cant answer callback query")
	}
}
