package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/state"
)

// The operations below are entry points for the command layer, which must have
// verified the caller's rights already.

// AuthorizeChat puts a chat under management, applying defaults on first use.
func (s *Service) AuthorizeChat(ctx context.Context, chatID, by int64) (*db.Settings, error) {
	unlock := s.chatLocks.Lock(state.ChatKey(chatID))
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		unlock()
		return nil, errors.WithMessage(err, "cant load settings")
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
	}
	settings.Authorized = true
	settings.AuthorizedBy = by
	err = s.settings.Put(ctx, settings)
	unlock()
	if err != nil {
		return nil, errors.WithMessage(err, "cant store settings")
	}

	s.getLogEntry().WithFields(log.Fields{"chat": chatID, "by": by}).Info("chat authorized")
	s.notify(ctx, settings, noticeInfo, "Chat authorized", by, "", "")
	return settings, nil
}

// DeauthorizeChat stops managing a chat and drops its volatile state.
func (s *Service) DeauthorizeChat(ctx context.Context, chatID int64) error {
	unlock := s.chatLocks.Lock(state.ChatKey(chatID))
	_, err := s.deauthorizeLocked(ctx, chatID)
	unlock()
	return err
}

// deauthorizeLocked expects the chat lock to be held. It reports whether the
// chat was managed before the call.
func (s *Service) deauthorizeLocked(ctx context.Context, chatID int64) (bool, error) {
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		return false, errors.WithMessage(err, "cant load settings")
	}
	if settings == nil || !settings.Authorized {
		return false, nil
	}
	settings.Authorized = false
	if err := s.settings.Put(ctx, settings); err != nil {
		return true, errors.WithMessage(err, "cant store settings")
	}
	s.flood.Forget(chatID)
	s.raids.Forget(chatID)
	s.getLogEntry().WithField("chat", chatID).Info("chat deauthorized")
	return true, nil
}

func (s *Service) Settings(ctx context.Context, chatID int64) (*db.Settings, error) {
	return s.authorizedSettings(ctx, chatID)
}

// SetSetting validates and persists one setting of a managed chat.
func (s *Service) SetSetting(ctx context.Context, chatID int64, key, value string) (*db.Settings, error) {
	defer s.chatLocks.Lock(state.ChatKey(chatID))()

	settings, err := s.authorizedSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := ApplySetting(settings, key, value); err != nil {
		return nil, err
	}
	if err := s.settings.Put(ctx, settings); err != nil {
		return nil, errors.WithMessage(err, "cant store settings")
	}
	return settings, nil
}

// Ban removes a member for good and clears whatever state they had.
func (s *Service) Ban(ctx context.Context, chatID, userID, by int64) error {
	settings, err := s.authorizedSettings(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.transport.Ban(ctx, chatID, userID); err != nil {
		s.perform(ctx, "ban", chatID, userID, err)
		return err
	}
	key := state.Key{ChatID: chatID, UserID: userID}
	s.flood.Unmute(key)
	if c, ok := s.captcha.Drop(key); ok {
		s.deletePrompt(ctx, c)
	}
	if err := s.ledger.Reset(ctx, chatID, userID); err != nil {
		s.getLogEntry().WithField("error", err.Error()).Warn("cant reset warnings after ban")
	}
	s.notify(ctx, settings, noticeBan, "Banned by moderator", userID, "", "")
	return nil
}

func (s *Service) Unban(ctx context.Context, chatID, userID int64) error {
	if _, err := s.authorizedSettings(ctx, chatID); err != nil {
		return err
	}
	if err := s.transport.Unban(ctx, chatID, userID); err != nil {
		s.perform(ctx, "unban", chatID, userID, err)
		return err
	}
	return nil
}

// Mute restricts a member for d and records the deadline. The record is only
// kept when the platform accepted the restriction.
func (s *Service) Mute(ctx context.Context, chatID, userID int64, d time.Duration) (time.Time, error) {
	settings, err := s.authorizedSettings(ctx, chatID)
	if err != nil {
		return time.Time{}, err
	}
	until := s.now().Add(d)
	if err := s.transport.Restrict(ctx, chatID, userID, NoPermissions, until); err != nil {
		s.perform(ctx, "restrict", chatID, userID, err)
		return time.Time{}, err
	}
	s.flood.Mute(state.Key{ChatID: chatID, UserID: userID}, until, "moderator")
	s.notify(ctx, settings, noticeWarn, "Muted by moderator", userID, "", humanizeDuration(d))
	return until, nil
}

func (s *Service) Unmute(ctx context.Context, chatID, userID int64) error {
	if _, err := s.authorizedSettings(ctx, chatID); err != nil {
		return err
	}
	if err := s.transport.Restrict(ctx, chatID, userID, FullPermissions, time.Time{}); err != nil {
		s.perform(ctx, "unrestrict", chatID, userID, err)
		return err
	}
	s.flood.Unmute(state.Key{ChatID: chatID, UserID: userID})
	return nil
}

// Clear deletes the given messages, stopping early when the platform refuses.
// It returns how many were removed.
func (s *Service) Clear(ctx context.Context, chatID int64, messageIDs []int, by int64) (int, error) {
	settings, err := s.authorizedSettings(ctx, chatID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range messageIDs {
		err := s.transport.DeleteMessage(ctx, chatID, id)
		if err == nil {
			deleted++
			continue
		}
		s.perform(ctx, "delete", chatID, by, err)
		if errors.Is(err, ngerrors.ErrTransportDenied) {
			return deleted, err
		}
	}
	s.notify(ctx, settings, noticeInfo, "Messages cleared", by, "",
		fmt.Sprintf(i18n.Get("Deleted: %d", settings.GetLanguage()), deleted))
	return deleted, nil
}

func (s *Service) Pin(ctx context.Context, chatID int64, messageID int, by int64) error {
	settings, err := s.authorizedSettings(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.transport.PinMessage(ctx, chatID, messageID); err != nil {
		s.perform(ctx, "pin", chatID, by, err)
		return err
	}
	s.notify(ctx, settings, noticeInfo, "Message pinned", by, "", "")
	return nil
}

// Warn escalates through the ledger, banning at the chat's limit.
func (s *Service) Warn(ctx context.Context, chatID, userID int64, reason string) (WarnResult, error) {
	settings, err := s.authorizedSettings(ctx, chatID)
	if err != nil {
		return WarnResult{}, err
	}
	return s.warn(ctx, settings, chatID, userID, reason)
}

func (s *Service) Unwarn(ctx context.Context, chatID, userID int64) (int, error) {
	if _, err := s.authorizedSettings(ctx, chatID); err != nil {
		return 0, err
	}
	return s.ledger.Unwarn(ctx, chatID, userID)
}

func (s *Service) Warnings(ctx context.Context, chatID, userID int64) (int, error) {
	if _, err := s.authorizedSettings(ctx, chatID); err != nil {
		return 0, err
	}
	return s.ledger.Count(ctx, chatID, userID)
}

func (s *Service) AddTrusted(ctx context.Context, chatID, userID, by int64) error {
	if _, err := s.authorizedSettings(ctx, chatID); err != nil {
		return err
	}
	return s.trusted.AddTrusted(ctx, &db.TrustedAdmin{
		ChatID:  chatID,
		UserID:  userID,
		AddedBy: by,
		AddedAt: s.now(),
	})
}

func (s *Service) RemoveTrusted(ctx context.Context, chatID, userID int64) error {
	return s.trusted.RemoveTrusted(ctx, chatID, userID)
}

func (s *Service) ListTrusted(ctx context.Context, chatID int64) ([]int64, error) {
	return s.trusted.ListTrusted(ctx, chatID)
}

// OnBotStatusChanged reacts to the bot's own membership changes: losing admin
// rights in a managed chat deauthorizes it, and joining an unmanaged chat
// without a master's invitation makes the bot leave.
func (s *Service) OnBotStatusChanged(ctx context.Context, chatID int64, status MemberStatus, by int64) error {
	entry := s.getLogEntry().WithFields(log.Fields{"method": "OnBotStatusChanged", "chat": chatID, "status": string(status)})

	unlock := s.chatLocks.Lock(state.ChatKey(chatID))
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		unlock()
		return errors.WithMessage(err, "cant load settings")
	}
	managed := settings != nil && settings.Authorized
	removed := status == StatusLeft || status == StatusKicked
	if managed && (removed || !status.IsAdmin()) {
		if _, err := s.deauthorizeLocked(ctx, chatID); err != nil {
			unlock()
			return err
		}
	}
	unlock()

	switch {
	case removed:
		if managed {
			entry.Info("bot removed from managed chat")
		}
	case managed && !status.IsAdmin():
		entry.Warn("bot lost admin rights, leaving")
		s.notify(ctx, settings, noticeWarn, "Bot lost admin rights and left the chat", by, "", "")
		s.perform(ctx, "leave", chatID, 0, s.transport.Leave(ctx, chatID))
	case !managed && !s.exemptions.IsMaster(by):
		entry.Warn("bot added to unmanaged chat, leaving")
		if _, err := s.transport.Send(ctx, chatID, i18n.Get("This chat is not authorized for moderation.", i18n.Default()), nil); err != nil {
			s.perform(ctx, "send", chatID, 0, err)
		}
		s.perform(ctx, "leave", chatID, 0, s.transport.Leave(ctx, chatID))
	}
	return nil
}
