package moderation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

func TestParseMuteDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"", time.Hour, true},
		{"30", 30 * time.Minute, true},
		{"45s", 45 * time.Second, true},
		{"10m", 10 * time.Minute, true},
		{"2H", 2 * time.Hour, true},
		{" 1d ", 24 * time.Hour, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"5w", 0, false},
		{"soon", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMuteDuration(tc.raw)
		if !tc.ok {
			assert.ErrorIs(t, err, ngerrors.ErrInvalidInput, "raw %q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw %q", tc.raw)
		assert.Equal(t, tc.want, got, "raw %q", tc.raw)
	}
}

func TestApplySetting(t *testing.T) {
	t.Parallel()

	s := db.DefaultSettings(1)
	require.NoError(t, ApplySetting(s, "flood_enabled", "off"))
	require.NoError(t, ApplySetting(s, "FLOOD_WINDOW", "10s"))
	require.NoError(t, ApplySetting(s, "mute_duration", "15"))
	require.NoError(t, ApplySetting(s, "captcha_mode", "Token"))
	require.NoError(t, ApplySetting(s, "language", "ru"))
	require.NoError(t, ApplySetting(s, "log_chat", "-100500"))

	assert.False(t, s.FloodEnabled)
	assert.Equal(t, 10*time.Second, s.GetFloodWindow())
	assert.Equal(t, 15*time.Minute, s.GetMuteDuration())
	assert.Equal(t, db.CaptchaModeToken, s.CaptchaMode)
	assert.Equal(t, "ru", s.Language)
	assert.Equal(t, int64(-100500), s.LogChatID)

	for key, raw := range map[string]string{
		"max_warns":       "0",
		"captcha_timeout": "1s",
		"captcha_mode":    "math",
		"language":        "xx",
		"link_block":      "maybe",
		"flood_window":    "",
		"bogus":           "1",
	} {
		assert.ErrorIs(t, ApplySetting(s, key, raw), ngerrors.ErrInvalidInput, "key %s", key)
	}
}

func TestDescribeSettingsListsEveryKey(t *testing.T) {
	t.Parallel()

	out := DescribeSettings(db.DefaultSettings(1))
	for _, key := range SettingKeys() {
		assert.True(t, strings.Contains(out, key+" = "), "missing %s", key)
	}
	assert.Contains(t, out, "min_account_age_days = 1  # applies only when the account creation date is known")
}
