package handlers

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/bot"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

// Reactor feeds ordinary group messages, including edits, to the flood and content filter.
// Messages are timed on arrival: platform dates have whole-second resolution.
type Reactor struct {
	guard Guard
}

func NewReactor(guard Guard) *Reactor {
	return &Reactor{guard: guard}
}

func (r *Reactor) Handle(ctx context.Context, u *api.Update, chat *api.Chat, _ *api.User) (bool, error) {
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || chat == nil || chat.IsPrivate() {
		return true, nil
	}
	// anonymous admins and linked channel posts have no member to act on
	if msg.From == nil || msg.SenderChat != nil {
		return true, nil
	}

	_, err := r.guard.OnMessage(ctx, moderation.Message{
		ChatID:    chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		Text:      bot.ExtractContent(msg),
		HasMedia:  bot.GetMessageType(msg) != bot.MessageTypeText,
	})
	if errors.Is(err, ngerrors.ErrConfigurationMissing) {
		return true, nil
	}
	return true, err
}
