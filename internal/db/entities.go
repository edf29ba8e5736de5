package db

import (
	"time"
)

const (
	CaptchaModeButton = "button"
	CaptchaModeToken  = "token"
)

type (
	// Settings is the per-chat authorization record and moderation policy.
	Settings struct {
		ID                  int64  `db:"id"`
		Authorized          bool   `db:"authorized"`
		AuthorizedBy        int64  `db:"authorized_by"`
		Language            string `db:"language"`
		FloodEnabled        bool   `db:"flood_enabled"`
		FloodLimit          int    `db:"flood_limit"`
		FloodWindow         int64  `db:"flood_window"`
		MuteDuration        int64  `db:"mute_duration"`
		LinkBlockEnabled    bool   `db:"link_block_enabled"`
		MediaLimit          int    `db:"media_limit"`
		CaptchaEnabled      bool   `db:"captcha_enabled"`
		CaptchaMode         string `db:"captcha_mode"`
		CaptchaTimeout      int64  `db:"captcha_timeout"`
		MinAccountAgeDays   int    `db:"min_account_age_days"`
		RequireProfilePhoto bool   `db:"require_profile_photo"`
		MaxWarns            int    `db:"max_warns"`
		RaidJoinLimit       int    `db:"raid_join_limit"`
		RaidTimeSpan        int64  `db:"raid_time_span"`
		LogChatID           int64  `db:"log_chat_id"`
	}

	TrustedAdmin struct {
		ChatID  int64     `db:"chat_id"`
		UserID  int64     `db:"user_id"`
		AddedBy int64     `db:"added_by"`
		AddedAt time.Time `db:"added_at"`
	}

	Warning struct {
		ChatID    int64     `db:"chat_id"`
		UserID    int64     `db:"user_id"`
		Count     int       `db:"count"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

// GetFloodWindow Returns the flood rate window length
func (s *Settings) GetFloodWindow() time.Duration {
	if s == nil || s.FloodWindow <= 0 {
		return defaultFloodWindow
	}
	return time.Duration(s.FloodWindow)
}

// GetMuteDuration Returns the automatic flood mute length
func (s *Settings) GetMuteDuration() time.Duration {
	if s == nil || s.MuteDuration <= 0 {
		return defaultMuteDuration
	}
	return time.Duration(s.MuteDuration)
}

// GetCaptchaTimeout Returns how long a joined member has to pass the challenge
func (s *Settings) GetCaptchaTimeout() time.Duration {
	if s == nil || s.CaptchaTimeout <= 0 {
		return defaultCaptchaTimeout
	}
	return time.Duration(s.CaptchaTimeout)
}

func (s *Settings) GetRaidTimeSpan() time.Duration {
	if s == nil || s.RaidTimeSpan <= 0 {
		return defaultRaidTimeSpan
	}
	return time.Duration(s.RaidTimeSpan)
}

func (s *Settings) GetLanguage() string {
	if s == nil || s.Language == "" {
		return defaultLanguage
	}
	return s.Language
}

// Clone returns a detached copy safe to hand to another goroutine.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
