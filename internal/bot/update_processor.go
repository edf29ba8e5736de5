package bot

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/event"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type (
	UpdateProcessor struct {
		dispatcher     Dispatcher
		updateHandlers []Handler
		now            func() time.Time
	}

	MessageType string
)

const (
	MessageTypeText      MessageType = "text"
	MessageTypeAnimation MessageType = "animation"
	MessageTypeAudio     MessageType = "audio"
	MessageTypeDocument  MessageType = "document"
	MessageTypePhoto     MessageType = "photo"
	MessageTypeSticker   MessageType = "sticker"
	MessageTypeVideo     MessageType = "video"
	MessageTypeVideoNote MessageType = "video_note"
	MessageTypeVoice     MessageType = "voice"
)

func NewUpdateProcessor(dispatcher Dispatcher, handlers ...Handler) *UpdateProcessor {
	return &UpdateProcessor{
		dispatcher:     dispatcher,
		updateHandlers: handlers,
		now:            time.Now,
	}
}

// Process queues the update on the dispatcher under its (chat, sender) key, so
// updates of one member are handled strictly in arrival order.
func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	if updateTime := UpdateTime(u); !updateTime.IsZero() && up.now().Sub(updateTime) > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_id": u.UpdateID,
			"age":       up.now().Sub(updateTime).String(),
		}).Debug("skipping outdated update")
		return nil
	}

	chat, user := UpdateOrigin(u)
	if chat == nil {
		log.WithField("update_id", u.UpdateID).Trace("update without chat")
		return nil
	}
	var userID int64
	if user != nil {
		userID = user.ID
	}

	return up.dispatcher.Dispatch(ctx, event.Event{
		Kind:   UpdateKind(u),
		ChatID: chat.ID,
		UserID: userID,
		Run: func(ctx context.Context) error {
			return up.handle(ctx, u, chat, user)
		},
	})
}

func (up *UpdateProcessor) handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) error {
	for _, handler := range up.updateHandlers {
		if handler == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		proceed, err := handler.Handle(ctx, u, chat, user)
		if err != nil {
			return errors.WithMessage(err, "handling error")
		}
		if !proceed {
			log.Trace("not proceeding")
			return nil
		}
	}
	return nil
}

// UpdateTime is the platform timestamp of the update, zero when it carries none.
func UpdateTime(u *api.Update) time.Time {
	var date int
	switch {
	case u.Message != nil:
		date = u.Message.Date
	case u.EditedMessage != nil:
		date = u.EditedMessage.Date
	case u.MyChatMember != nil:
		date = u.MyChatMember.Date
	case u.ChatMember != nil:
		date = u.ChatMember.Date
	}
	if date == 0 {
		return time.Time{}
	}
	return time.Unix(int64(date), 0)
}

func UpdateOrigin(u *api.Update) (*api.Chat, *api.User) {
	chat := u.FromChat()
	if chat == nil {
		switch {
		case u.MyChatMember != nil:
			chat = &u.MyChatMember.Chat
		case u.ChatMember != nil:
			chat = &u.ChatMember.Chat
		}
	}

	user := u.SentFrom()
	if user == nil {
		switch {
		case u.MyChatMember != nil:
			user = &u.MyChatMember.From
		case u.ChatMember != nil:
			user = &u.ChatMember.From
		}
	}
	return chat, user
}

func UpdateKind(u *api.Update) string {
	switch {
	case u.Message != nil && u.Message.NewChatMembers != nil:
		return "join"
	case u.Message != nil && u.Message.LeftChatMember != nil:
		return "leave"
	case u.Message != nil && u.Message.IsCommand():
		return "command"
	case u.Message != nil:
		return "message"
	case u.EditedMessage != nil:
		return "edited_message"
	case u.CallbackQuery != nil:
		return "callback"
	case u.MyChatMember != nil:
		return "my_chat_member"
	case u.ChatMember != nil:
		return "chat_member"
	default:
		return "other"
	}
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := user.FirstName + " " + user.LastName
	fullName = strings.TrimSpace(fullName)
	if len(fullName) == 0 {
		fullName = user.UserName
	}
	return fullName
}

// ExtractContent joins text, caption and the targets of hidden links, so link
// checks see URLs that are not part of the visible text.
func ExtractContent(msg *api.Message) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{msg.Text, msg.Caption} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	entities := append(append([]api.MessageEntity{}, msg.Entities...), msg.CaptionEntities...)
	for _, e := range entities {
		if e.Type == "text_link" && e.URL != "" {
			parts = append(parts, e.URL)
		}
	}
	return strings.Join(parts, " ")
}

func GetMessageType(msg *api.Message) MessageType {
	switch {
	case msg.Animation != nil:
		return MessageTypeAnimation
	case msg.Audio != nil:
		return MessageTypeAudio
	case msg.Document != nil:
		return MessageTypeDocument
	case msg.Photo != nil:
		return MessageTypePhoto
	case msg.Sticker != nil:
		return MessageTypeSticker
	case msg.Video != nil:
		return MessageTypeVideo
	case msg.VideoNote != nil:
		return MessageTypeVideoNote
	case msg.Voice != nil:
		return MessageTypeVoice
	default:
		return MessageTypeText
	}
}
