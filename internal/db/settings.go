package db

import (
	"time"
)

const (
	defaultLanguage       = "en"
	defaultFloodLimit     = 5
	defaultFloodWindow    = 3 * time.Second
	defaultMuteDuration   = 5 * time.Minute
	defaultMediaLimit     = 3
	defaultCaptchaTimeout = 2 * time.Minute
	defaultMinAccountAge  = 1
	defaultMaxWarns       = 3
	defaultRaidJoinLimit  = 10
	defaultRaidTimeSpan   = time.Minute
)

func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:                chatID,
		Language:          defaultLanguage,
		FloodEnabled:      true,
		FloodLimit:        defaultFloodLimit,
		FloodWindow:       defaultFloodWindow.Nanoseconds(),
		MuteDuration:      defaultMuteDuration.Nanoseconds(),
		LinkBlockEnabled:  true,
		MediaLimit:        defaultMediaLimit,
		CaptchaEnabled:    true,
		CaptchaMode:       CaptchaModeButton,
		CaptchaTimeout:    defaultCaptchaTimeout.Nanoseconds(),
		MinAccountAgeDays: defaultMinAccountAge,
		MaxWarns:          defaultMaxWarns,
		RaidJoinLimit:     defaultRaidJoinLimit,
		RaidTimeSpan:      defaultRaidTimeSpan.Nanoseconds(),
	}
}
