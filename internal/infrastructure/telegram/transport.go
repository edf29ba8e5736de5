package telegram

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/policy/permissions"
)

// Errors carrying one of these fragments mean the bot lacks the rights for the
// action and retrying will not help.
var deniedMarkers = []string{
	"not enough rights",
	"need administrator rights",
	"have no rights",
	"chat_admin_required",
	"user is an administrator of the chat",
	"can't remove chat owner",
	"can't restrict self",
	"bot was kicked",
	"bot is not a member",
	"message can't be deleted",
}

var goneMarkers = []string{
	"message to delete not found",
	"user not found",
	"participant_id_invalid",
}

// Transport performs moderation actions through the Bot API, throttled by a
// shared token bucket.
type Transport struct {
	bot     *api.BotAPI
	limiter *rate.Limiter
}

func NewTransport(bot *api.BotAPI, perSecond float64, burst int) *Transport {
	if perSecond <= 0 {
		perSecond = 25
	}
	if burst < 1 {
		burst = 1
	}
	return &Transport{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	text := strings.ToLower(err.Error())
	for _, marker := range deniedMarkers {
		if strings.Contains(text, marker) {
			return errors.Wrapf(ngerrors.ErrTransportDenied, "%s: %s", action, err.Error())
		}
	}
	for _, marker := range goneMarkers {
		if strings.Contains(text, marker) {
			return errors.Wrapf(ngerrors.ErrNotFound, "%s: %s", action, err.Error())
		}
	}
	return errors.Wrapf(err, "failed to %s", action)
}

func (t *Transport) request(ctx context.Context, action string, c api.Chattable) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.bot.Request(c)
	return classify(action, err)
}

func chatPermissions(p moderation.Permissions) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       p.SendMessages,
		CanSendAudios:         p.SendMedia,
		CanSendDocuments:      p.SendMedia,
		CanSendPhotos:         p.SendMedia,
		CanSendVideos:         p.SendMedia,
		CanSendVideoNotes:     p.SendMedia,
		CanSendVoiceNotes:     p.SendMedia,
		CanSendPolls:          p.SendOther,
		CanSendOtherMessages:  p.SendOther,
		CanAddWebPagePreviews: p.AddWebPreviews,
	}
}

func untilDate(until time.Time) int64 {
	if until.IsZero() {
		return 0
	}
	return until.Unix()
}

func (t *Transport) Restrict(ctx context.Context, chatID, userID int64, perms moderation.Permissions, until time.Time) error {
	return t.request(ctx, "restrict", api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		UntilDate:   untilDate(until),
		Permissions: chatPermissions(perms),
	})
}

func (t *Transport) Ban(ctx context.Context, chatID, userID int64) error {
	return t.request(ctx, "ban", api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		RevokeMessages: true,
	})
}

func (t *Transport) Unban(ctx context.Context, chatID, userID int64) error {
	return t.request(ctx, "unban", api.UnbanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		OnlyIfBanned: true,
	})
}

// DeleteMessage treats an already deleted message as success.
func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := t.request(ctx, "delete message", api.NewDeleteMessage(chatID, messageID))
	if errors.Is(err, ngerrors.ErrNotFound) {
		return nil
	}
	return err
}

func (t *Transport) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	return t.request(ctx, "pin message", api.PinChatMessageConfig{
		BaseChatMessage: api.BaseChatMessage{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			MessageID:  messageID,
		},
		DisableNotification: true,
	})
}

func inlineKeyboard(markup *moderation.Markup) *api.InlineKeyboardMarkup {
	if markup == nil || len(markup.Rows) == 0 {
		return nil
	}
	rows := make([][]api.InlineKeyboardButton, 0, len(markup.Rows))
	for _, row := range markup.Rows {
		buttons := make([]api.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, api.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, api.NewInlineKeyboardRow(buttons...))
	}
	keyboard := api.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

func (t *Transport) Send(ctx context.Context, chatID int64, text string, markup *moderation.Markup) (int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if keyboard := inlineKeyboard(markup); keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, classify("send message", err)
	}
	return sent.MessageID, nil
}

// Reply sends text as a reply to messageID in the same chat.
func (t *Transport) Reply(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := api.NewMessage(chatID, text)
	msg.ReplyParameters.MessageID = messageID
	msg.ReplyParameters.ChatID = chatID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	msg.DisableNotification = true
	_, err := t.bot.Send(msg)
	return classify("reply", err)
}

func (t *Transport) member(ctx context.Context, chatID, userID int64) (*api.ChatMember, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	member, err := t.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		return nil, classify("get chat member", err)
	}
	return &member, nil
}

func (t *Transport) MemberStatus(ctx context.Context, chatID, userID int64) (moderation.MemberStatus, error) {
	member, err := t.member(ctx, chatID, userID)
	if err != nil {
		return moderation.StatusUnknown, err
	}
	return permissions.Status(member), nil
}

// CanModerate reports whether userID holds restrict and delete rights in chatID.
func (t *Transport) CanModerate(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := t.member(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return permissions.CanModerate(member), nil
}

func (t *Transport) Leave(ctx context.Context, chatID int64) error {
	return t.request(ctx, "leave chat", api.LeaveChatConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
}

func (t *Transport) HasProfilePhoto(ctx context.Context, userID int64) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, err
	}
	photos, err := t.bot.GetUserProfilePhotos(api.UserProfilePhotosConfig{UserID: userID, Limit: 1})
	if err != nil {
		return false, classify("get profile photos", err)
	}
	return photos.TotalCount > 0, nil
}

func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return t.request(ctx, "answer callback", api.NewCallback(callbackID, text))
}
