package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

type accessLevel int

const (
	accessModerator accessLevel = iota
	accessAdmin
	accessMaster
)

type command struct {
	access accessLevel
	// target commands act on the author of the replied message or a numeric id argument
	target bool
	run    func(ctx context.Context, req *request) (string, error)
}

type request struct {
	chatID    int64
	callerID  int64
	targetID  int64
	messageID int
	replyID   int
	args      []string
	lang      string
}

// maxClear bounds how many recent messages one /clear may remove.
const maxClear = 100

// Admin routes moderator commands issued in group chats.
type Admin struct {
	guard     Guard
	rights    Rights
	messenger Messenger
	botID     int64
	commands  map[string]command
}

func NewAdmin(guard Guard, rights Rights, messenger Messenger, botID int64) *Admin {
	a := &Admin{
		guard:     guard,
		rights:    rights,
		messenger: messenger,
		botID:     botID,
	}
	a.commands = map[string]command{
		"setup":       {access: accessMaster, run: a.setup},
		"deauthorize": {access: accessAdmin, run: a.deauthorize},
		"set":         {access: accessAdmin, run: a.set},
		"addtrusted":  {access: accessAdmin, target: true, run: a.addTrusted},
		"deltrusted":  {access: accessAdmin, target: true, run: a.delTrusted},
		"clear":       {access: accessAdmin, run: a.clear},
		"pin":         {access: accessAdmin, run: a.pin},
		"settings":    {access: accessModerator, run: a.settings},
		"trusted":     {access: accessModerator, run: a.listTrusted},
		"ban":         {access: accessModerator, target: true, run: a.ban},
		"unban":       {access: accessModerator, target: true, run: a.unban},
		"mute":        {access: accessModerator, target: true, run: a.mute},
		"unmute":      {access: accessModerator, target: true, run: a.unmute},
		"warn":        {access: accessModerator, target: true, run: a.warn},
		"unwarn":      {access: accessModerator, target: true, run: a.unwarn},
		"warns":       {access: accessModerator, target: true, run: a.warns},
	}
	return a
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("handler", "admin")
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil || user == nil || u.Message == nil || user.IsBot || !u.Message.IsCommand() {
		return true, nil
	}
	m := u.Message
	if chat.IsPrivate() {
		if !strings.EqualFold(m.Command(), "start") {
			return true, nil
		}
		lang := user.LanguageCode
		if lang == "" {
			lang = i18n.Default()
		}
		a.reply(ctx, a.getLogEntry().WithField("user", user.ID), m,
			i18n.Get("I protect group chats from spam and raids. Add me to a group as an administrator and run /setup there.", lang))
		return false, nil
	}
	name := strings.ToLower(m.Command())
	cmd, ok := a.commands[name]
	if !ok {
		return true, nil
	}

	entry := a.getLogEntry().WithFields(log.Fields{"command": name, "chat": chat.ID, "user": user.ID})
	entry.Trace("command received")

	// denied commands still go through the message filters
	if !a.allowed(ctx, cmd.access, chat.ID, user.ID) {
		entry.Debug("command denied")
		return true, nil
	}

	req := &request{
		chatID:    chat.ID,
		callerID:  user.ID,
		messageID: m.MessageID,
		args:      strings.Fields(m.CommandArguments()),
		lang:      chatLanguage(ctx, a.guard, chat.ID),
	}
	if m.ReplyToMessage != nil {
		req.replyID = m.ReplyToMessage.MessageID
	}
	if cmd.target {
		if !a.resolveTarget(m, req) {
			a.reply(ctx, entry, m, i18n.Get("Reply to a message of the user or pass their numeric id.", req.lang))
			return false, nil
		}
		if req.targetID == a.botID || a.rights.IsExempt(ctx, chat.ID, req.targetID) {
			a.reply(ctx, entry, m, i18n.Get("This command cannot target moderators or the bot.", req.lang))
			return false, nil
		}
	}

	text, err := cmd.run(ctx, req)
	if err != nil {
		text = a.describeError(err, req.lang)
		if text == "" {
			return false, errors.WithMessagef(err, "command %s", name)
		}
		entry.WithField("error", err.Error()).Debug("command rejected")
	}
	if text != "" {
		a.reply(ctx, entry, m, text)
	}
	return false, nil
}

func (a *Admin) allowed(ctx context.Context, level accessLevel, chatID, userID int64) bool {
	if a.rights.IsMaster(userID) {
		return true
	}
	switch level {
	case accessModerator:
		return a.rights.IsExempt(ctx, chatID, userID)
	case accessAdmin:
		return a.rights.IsAdmin(ctx, chatID, userID)
	default:
		return false
	}
}

func (a *Admin) resolveTarget(m *api.Message, req *request) bool {
	if m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && m.ReplyToMessage.SenderChat == nil {
		req.targetID = m.ReplyToMessage.From.ID
		return true
	}
	if len(req.args) == 0 {
		return false
	}
	id, err := strconv.ParseInt(req.args[0], 10, 64)
	if err != nil || id <= 0 {
		return false
	}
	req.targetID = id
	req.args = req.args[1:]
	return true
}

func (a *Admin) describeError(err error, lang string) string {
	switch {
	case errors.Is(err, ngerrors.ErrInvalidInput):
		return fmt.Sprintf(i18n.Get("Invalid value: %s", lang), err.Error())
	case errors.Is(err, ngerrors.ErrTransportDenied):
		return i18n.Get("I don't have enough rights to do that.", lang)
	case errors.Is(err, ngerrors.ErrConfigurationMissing):
		return i18n.Get("This chat is not set up yet. A bot master has to run /setup.", lang)
	case errors.Is(err, ngerrors.ErrNotFound):
		return i18n.Get("User not found in this chat.", lang)
	}
	return ""
}

func (a *Admin) reply(ctx context.Context, entry *log.Entry, m *api.Message, text string) {
	if err := a.messenger.Reply(ctx, m.Chat.ID, m.MessageID, text); err != nil {
		entry.WithField("error", err.Error()).Warn("cant reply to command")
	}
}

func (a *Admin) setup(ctx context.Context, req *request) (string, error) {
	ok, err := a.messenger.CanModerate(ctx, req.chatID, a.botID)
	if err != nil {
		return "", errors.WithMessage(err, "cant check bot rights")
	}
	if !ok {
		return i18n.Get("Make me an administrator with rights to restrict members and delete messages first.", req.lang), nil
	}
	settings, err := a.guard.AuthorizeChat(ctx, req.chatID, req.callerID)
	if err != nil {
		return "", err
	}
	return i18n.Get("Moderation enabled for this chat.", settings.GetLanguage()), nil
}

func (a *Admin) deauthorize(ctx context.Context, req *request) (string, error) {
	if err := a.guard.DeauthorizeChat(ctx, req.chatID); err != nil {
		return "", err
	}
	return i18n.Get("Moderation disabled for this chat.", req.lang), nil
}

func (a *Admin) settings(ctx context.Context, req *request) (string, error) {
	settings, err := a.guard.Settings(ctx, req.chatID)
	if err != nil {
		return "", err
	}
	return i18n.Get("Current settings:", req.lang) + "\n" + moderation.DescribeSettings(settings), nil
}

func (a *Admin) set(ctx context.Context, req *request) (string, error) {
	if len(req.args) != 2 {
		return i18n.Get("Usage: /set <key> <value>. Keys:", req.lang) + " " + strings.Join(moderation.SettingKeys(), ", "), nil
	}
	settings, err := a.guard.SetSetting(ctx, req.chatID, req.args[0], req.args[1])
	if err != nil {
		return "", err
	}
	return i18n.Get("Setting updated.", settings.GetLanguage()), nil
}

func (a *Admin) addTrusted(ctx context.Context, req *request) (string, error) {
	if err := a.guard.AddTrusted(ctx, req.chatID, req.targetID, req.callerID); err != nil {
		return "", err
	}
	a.rights.Invalidate(req.chatID, req.targetID)
	return i18n.Get("User is now trusted.", req.lang), nil
}

func (a *Admin) delTrusted(ctx context.Context, req *request) (string, error) {
	if err := a.guard.RemoveTrusted(ctx, req.chatID, req.targetID); err != nil {
		return "", err
	}
	a.rights.Invalidate(req.chatID, req.targetID)
	return i18n.Get("User is no longer trusted.", req.lang), nil
}

// clear removes the command along with the replied message, or with the n
// messages sent right before it.
func (a *Admin) clear(ctx context.Context, req *request) (string, error) {
	ids := []int{req.messageID}
	switch {
	case req.replyID != 0:
		ids = append(ids, req.replyID)
	case len(req.args) > 0:
		n, err := strconv.Atoi(req.args[0])
		if err != nil || n < 1 || n > maxClear {
			return "", errors.Wrapf(ngerrors.ErrInvalidInput, "count must be between 1 and %d", maxClear)
		}
		for id := req.messageID - 1; id > 0 && id >= req.messageID-n; id-- {
			ids = append(ids, id)
		}
	}
	_, err := a.guard.Clear(ctx, req.chatID, ids, req.callerID)
	return "", err
}

func (a *Admin) pin(ctx context.Context, req *request) (string, error) {
	if req.replyID == 0 {
		return i18n.Get("Reply to the message you want to pin.", req.lang), nil
	}
	return "", a.guard.Pin(ctx, req.chatID, req.replyID, req.callerID)
}

func (a *Admin) listTrusted(ctx context.Context, req *request) (string, error) {
	ids, err := a.guard.ListTrusted(ctx, req.chatID)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return i18n.Get("No trusted users.", req.lang), nil
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, strconv.FormatInt(id, 10))
	}
	return i18n.Get("Trusted users:", req.lang) + "\n" + strings.Join(lines, "\n"), nil
}

func (a *Admin) ban(ctx context.Context, req *request) (string, error) {
	if err := a.guard.Ban(ctx, req.chatID, req.targetID, req.callerID); err != nil {
		return "", err
	}
	return i18n.Get("User banned.", req.lang), nil
}

func (a *Admin) unban(ctx context.Context, req *request) (string, error) {
	if err := a.guard.Unban(ctx, req.chatID, req.targetID); err != nil {
		return "", err
	}
	return i18n.Get("User unbanned.", req.lang), nil
}

func (a *Admin) mute(ctx context.Context, req *request) (string, error) {
	var d time.Duration
	if len(req.args) > 0 {
		parsed, err := moderation.ParseMuteDuration(req.args[0])
		if err != nil {
			return "", err
		}
		d = parsed
	} else {
		settings, err := a.guard.Settings(ctx, req.chatID)
		if err != nil {
			return "", err
		}
		d = settings.GetMuteDuration()
	}
	until, err := a.guard.Mute(ctx, req.chatID, req.targetID, d)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(i18n.Get("User muted until %s.", req.lang), until.UTC().Format("2006-01-02 15:04 MST")), nil
}

func (a *Admin) unmute(ctx context.Context, req *request) (string, error) {
	if err := a.guard.Unmute(ctx, req.chatID, req.targetID); err != nil {
		return "", err
	}
	return i18n.Get("User unmuted.", req.lang), nil
}

func (a *Admin) warn(ctx context.Context, req *request) (string, error) {
	reason := strings.Join(req.args, " ")
	if reason == "" {
		reason = "moderator"
	}
	res, err := a.guard.Warn(ctx, req.chatID, req.targetID, reason)
	if err != nil {
		return "", err
	}
	if res.Banned {
		return i18n.Get("Warning limit reached, user banned.", req.lang), nil
	}
	return fmt.Sprintf(i18n.Get("User warned (%d).", req.lang), res.Count), nil
}

func (a *Admin) unwarn(ctx context.Context, req *request) (string, error) {
	count, err := a.guard.Unwarn(ctx, req.chatID, req.targetID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(i18n.Get("Warnings left: %d.", req.lang), count), nil
}

func (a *Admin) warns(ctx context.Context, req *request) (string, error) {
	count, err := a.guard.Warnings(ctx, req.chatID, req.targetID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(i18n.Get("Warnings: %d.", req.lang), count), nil
}
