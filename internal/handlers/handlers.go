package handlers

import (
	"context"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

// Guard is the moderation core as seen by the update handlers.
type Guard interface {
	OnMemberJoined(ctx context.Context, j moderation.Join) (moderation.Admission, error)
	OnMemberLeft(ctx context.Context, chatID, userID int64, voluntary bool)
	OnCaptchaAnswer(ctx context.Context, a moderation.CaptchaAnswer) (moderation.Resolution, error)
	OnMessage(ctx context.Context, m moderation.Message) (moderation.Verdict, error)
	OnBotStatusChanged(ctx context.Context, chatID int64, status moderation.MemberStatus, by int64) error

	AuthorizeChat(ctx context.Context, chatID, by int64) (*db.Settings, error)
	DeauthorizeChat(ctx context.Context, chatID int64) error
	Settings(ctx context.Context, chatID int64) (*db.Settings, error)
	SetSetting(ctx context.Context, chatID int64, key, value string) (*db.Settings, error)

	Ban(ctx context.Context, chatID, userID, by int64) error
	Unban(ctx context.Context, chatID, userID int64) error
	Mute(ctx context.Context, chatID, userID int64, d time.Duration) (time.Time, error)
	Unmute(ctx context.Context, chatID, userID int64) error
	Warn(ctx context.Context, chatID, userID int64, reason string) (moderation.WarnResult, error)
	Unwarn(ctx context.Context, chatID, userID int64) (int, error)
	Warnings(ctx context.Context, chatID, userID int64) (int, error)
	Clear(ctx context.Context, chatID int64, messageIDs []int, by int64) (int, error)
	Pin(ctx context.Context, chatID int64, messageID int, by int64) error

	AddTrusted(ctx context.Context, chatID, userID, by int64) error
	RemoveTrusted(ctx context.Context, chatID, userID int64) error
	ListTrusted(ctx context.Context, chatID int64) ([]int64, error)
}

type Rights interface {
	IsMaster(userID int64) bool
	IsAdmin(ctx context.Context, chatID, userID int64) bool
	IsExempt(ctx context.Context, chatID, userID int64) bool
	Invalidate(chatID, userID int64)
}

type Messenger interface {
	Reply(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	CanModerate(ctx context.Context, chatID, userID int64) (bool, error)
}

// chatLanguage is the configured language of a managed chat, else the bot default.
func chatLanguage(ctx context.Context, guard Guard, chatID int64) string {
	settings, err := guard.Settings(ctx, chatID)
	if err != nil || settings == nil || settings.Language == "" {
		return i18n.Default()
	}
	return settings.Language
}
