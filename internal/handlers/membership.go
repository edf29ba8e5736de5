package handlers

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/policy/permissions"
)

// Membership follows chat_member and my_chat_member updates.
type Membership struct {
	guard  Guard
	rights Rights
}

func NewMembership(guard Guard, rights Rights) *Membership {
	return &Membership{guard: guard, rights: rights}
}

func (m *Membership) getLogEntry() *log.Entry {
	return log.WithField("handler", "membership")
}

func (m *Membership) Handle(ctx context.Context, u *api.Update, _ *api.Chat, _ *api.User) (bool, error) {
	switch {
	case u.MyChatMember != nil:
		upd := u.MyChatMember
		status := permissions.BotStatus(&upd.NewChatMember)
		m.getLogEntry().WithFields(log.Fields{
			"chat":   upd.Chat.ID,
			"status": string(status),
			"by":     upd.From.ID,
		}).Debug("bot membership changed")
		return false, m.guard.OnBotStatusChanged(ctx, upd.Chat.ID, status, upd.From.ID)

	case u.ChatMember != nil:
		upd := u.ChatMember
		if upd.NewChatMember.User == nil {
			return false, nil
		}
		userID := upd.NewChatMember.User.ID
		m.rights.Invalidate(upd.Chat.ID, userID)
		switch permissions.Status(&upd.NewChatMember) {
		case moderation.StatusLeft:
			// an unban also lands here, from kicked
			old := permissions.Status(&upd.OldChatMember)
			voluntary := old != moderation.StatusKicked && old != moderation.StatusLeft
			m.guard.OnMemberLeft(ctx, upd.Chat.ID, userID, voluntary)
		case moderation.StatusKicked:
			m.guard.OnMemberLeft(ctx, upd.Chat.ID, userID, false)
		}
		return false, nil
	}
	return true, nil
}
