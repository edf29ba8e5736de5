package moderation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
)

const DefaultMuteDuration = time.Hour

var durationPattern = regexp.MustCompile(`^(\d+)([smhd]?)$`)

// ParseMuteDuration reads "30", "45s", "10m", "2h" or "1d". A bare number means minutes,
// an empty string yields the default hour.
func ParseMuteDuration(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultMuteDuration, nil
	}
	m := durationPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, errors.Wrapf(ngerrors.ErrInvalidInput, "bad duration %q", raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(ngerrors.ErrInvalidInput, "bad duration %q", raw)
	}
	unit := time.Minute
	switch m[2] {
	case "s":
		unit = time.Second
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

type settingSetter func(s *db.Settings, raw string) error

var settingSetters = map[string]settingSetter{
	"flood_enabled":         boolSetter(func(s *db.Settings, v bool) { s.FloodEnabled = v }),
	"flood_limit":           intSetter(1, 1000, func(s *db.Settings, v int) { s.FloodLimit = v }),
	"flood_window":          durationSetter(time.Second, time.Hour, func(s *db.Settings, v time.Duration) { s.FloodWindow = v.Nanoseconds() }),
	"mute_duration":         durationSetter(time.Second, 366*24*time.Hour, func(s *db.Settings, v time.Duration) { s.MuteDuration = v.Nanoseconds() }),
	"link_block":            boolSetter(func(s *db.Settings, v bool) { s.LinkBlockEnabled = v }),
	"media_limit":           intSetter(0, 1000, func(s *db.Settings, v int) { s.MediaLimit = v }),
	"captcha":               boolSetter(func(s *db.Settings, v bool) { s.CaptchaEnabled = v }),
	"captcha_mode":          captchaModeSetter,
	"captcha_timeout":       durationSetter(10*time.Second, time.Hour, func(s *db.Settings, v time.Duration) { s.CaptchaTimeout = v.Nanoseconds() }),
	"min_account_age_days":  intSetter(0, 3650, func(s *db.Settings, v int) { s.MinAccountAgeDays = v }),
	"require_profile_photo": boolSetter(func(s *db.Settings, v bool) { s.RequireProfilePhoto = v }),
	"max_warns":             intSetter(1, 100, func(s *db.Settings, v int) { s.MaxWarns = v }),
	"raid_join_limit":       intSetter(0, 10000, func(s *db.Settings, v int) { s.RaidJoinLimit = v }),
	"raid_time_span":        durationSetter(time.Second, 24*time.Hour, func(s *db.Settings, v time.Duration) { s.RaidTimeSpan = v.Nanoseconds() }),
	"log_chat":              int64Setter(func(s *db.Settings, v int64) { s.LogChatID = v }),
	"language":              languageSetter,
}

// SettingKeys lists every key accepted by ApplySetting.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingSetters))
	for k := range settingSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplySetting validates raw and writes it into s.
func ApplySetting(s *db.Settings, key, raw string) error {
	setter, ok := settingSetters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return errors.Wrapf(ngerrors.ErrInvalidInput, "unknown setting %q", key)
	}
	return setter(s, strings.TrimSpace(raw))
}

func boolSetter(set func(*db.Settings, bool)) settingSetter {
	return func(s *db.Settings, raw string) error {
		switch strings.ToLower(raw) {
		case "1", "on", "yes", "true", "enable", "enabled":
			set(s, true)
		case "0", "off", "no", "false", "disable", "disabled":
			set(s, false)
		default:
			return errors.Wrapf(ngerrors.ErrInvalidInput, "expected on/off, got %q", raw)
		}
		return nil
	}
}

func intSetter(lo, hi int, set func(*db.Settings, int)) settingSetter {
	return func(s *db.Settings, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil || v < lo || v > hi {
			return errors.Wrapf(ngerrors.ErrInvalidInput, "expected integer in [%d, %d], got %q", lo, hi, raw)
		}
		set(s, v)
		return nil
	}
}

func int64Setter(set func(*db.Settings, int64)) settingSetter {
	return func(s *db.Settings, raw string) error {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(ngerrors.ErrInvalidInput, "expected chat id, got %q", raw)
		}
		set(s, v)
		return nil
	}
}

func durationSetter(lo, hi time.Duration, set func(*db.Settings, time.Duration)) settingSetter {
	return func(s *db.Settings, raw string) error {
		if raw == "" {
			return errors.Wrap(ngerrors.ErrInvalidInput, "empty duration")
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			v, err = ParseMuteDuration(raw)
		}
		if err != nil || v < lo || v > hi {
			return errors.Wrapf(ngerrors.ErrInvalidInput, "expected duration in [%s, %s], got %q", lo, hi, raw)
		}
		set(s, v)
		return nil
	}
}

func captchaModeSetter(s *db.Settings, raw string) error {
	switch mode := strings.ToLower(raw); mode {
	case db.CaptchaModeButton, db.CaptchaModeToken:
		s.CaptchaMode = mode
		return nil
	default:
		return errors.Wrapf(ngerrors.ErrInvalidInput, "captcha mode must be %s or %s", db.CaptchaModeButton, db.CaptchaModeToken)
	}
}

func languageSetter(s *db.Settings, raw string) error {
	lang := strings.ToLower(raw)
	if !tool.In(lang, i18n.GetLanguagesList()...) {
		return errors.Wrapf(ngerrors.ErrInvalidInput, "language must be one of %s", strings.Join(i18n.GetLanguagesList(), ", "))
	}
	s.Language = lang
	return nil
}

// settingNotes flag settings whose effect depends on data the platform may not provide.
var settingNotes = map[string]string{
	"min_account_age_days": "applies only when the account creation date is known; the Bot API does not report it",
}

// DescribeSettings renders settings as key=value lines in SettingKeys order.
func DescribeSettings(s *db.Settings) string {
	values := map[string]string{
		"flood_enabled":         strconv.FormatBool(s.FloodEnabled),
		"flood_limit":           strconv.Itoa(s.FloodLimit),
		"flood_window":          s.GetFloodWindow().String(),
		"mute_duration":         s.GetMuteDuration().String(),
		"link_block":            strconv.FormatBool(s.LinkBlockEnabled),
		"media_limit":           strconv.Itoa(s.MediaLimit),
		"captcha":               strconv.FormatBool(s.CaptchaEnabled),
		"captcha_mode":          s.CaptchaMode,
		"captcha_timeout":       s.GetCaptchaTimeout().String(),
		"min_account_age_days":  strconv.Itoa(s.MinAccountAgeDays),
		"require_profile_photo": strconv.FormatBool(s.RequireProfilePhoto),
		"max_warns":             strconv.Itoa(s.MaxWarns),
		"raid_join_limit":       strconv.Itoa(s.RaidJoinLimit),
		"raid_time_span":        s.GetRaidTimeSpan().String(),
		"log_chat":              strconv.FormatInt(s.LogChatID, 10),
		"language":              s.GetLanguage(),
	}
	var b strings.Builder
	for _, k := range SettingKeys() {
		if note, ok := settingNotes[k]; ok {
			fmt.Fprintf(&b, "%s = %s  # %s\n", k, values[k], note)
			continue
		}
		fmt.Fprintf(&b, "%s = %s\n", k, values[k])
	}
	return b.String()
}
