package moderation

import (
	"context"
	"strconv"

	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/i18n"
)

type noticeLevel string

const (
	noticeInfo noticeLevel = "ℹ️"
	noticeWarn noticeLevel = "⚠️"
	noticeBan  noticeLevel = "🚫"
)

const noticeTemplate = `{{ .icon }} {{ .title }}
{{ .chat_label }}: {{ .chat }}
{{ .user_label }}: {{ if .name }}{{ .name }} {{ end }}({{ .user }}){{ if .detail }}
{{ .detail }}{{ end }}`

// notify sends an audit line to the chat's log destination, falling back to the bot owner.
func (s *Service) notify(ctx context.Context, settings *db.Settings, level noticeLevel, title string, userID int64, name, detail string) {
	if settings == nil {
		return
	}
	target := settings.LogChatID
	if target == 0 {
		target = s.exemptions.OwnerID()
	}
	if target == 0 {
		return
	}
	lang := settings.GetLanguage()
	text := tool.ExecTemplate(noticeTemplate, map[string]any{
		"icon":       string(level),
		"title":      i18n.Get(title, lang),
		"chat_label": i18n.Get("Chat", lang),
		"chat":       strconv.FormatInt(settings.ID, 10),
		"user_label": i18n.Get("User", lang),
		"user":       strconv.FormatInt(userID, 10),
		"name":       name,
		"detail":     detail,
	})
	if _, err := s.transport.Send(ctx, target, text, nil); err != nil {
		s.perform(ctx, "notify", target, userID, err)
	}
}

func (s *Service) notifyChat(ctx context.Context, chatID int64, level noticeLevel, title string, userID int64, name, detail string) {
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		return
	}
	s.notify(ctx, settings, level, title, userID, name, detail)
}
