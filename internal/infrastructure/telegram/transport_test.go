package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classify("ban", nil))
	assert.ErrorIs(t, classify("ban", errors.New("Bad Request: not enough rights to restrict/unrestrict chat member")), ngerrors.ErrTransportDenied)
	assert.ErrorIs(t, classify("ban", errors.New("Bad Request: CHAT_ADMIN_REQUIRED")), ngerrors.ErrTransportDenied)
	assert.ErrorIs(t, classify("delete message", errors.New("Bad Request: message to delete not found")), ngerrors.ErrNotFound)

	err := classify("ban", errors.New("Too Many Requests: retry after 5"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ngerrors.ErrTransportDenied)
	assert.Contains(t, err.Error(), "failed to ban")
}

func TestChatPermissions(t *testing.T) {
	t.Parallel()

	none := chatPermissions(moderation.NoPermissions)
	assert.False(t, none.CanSendMessages)
	assert.False(t, none.CanSendPhotos)
	assert.False(t, none.CanAddWebPagePreviews)

	full := chatPermissions(moderation.FullPermissions)
	assert.True(t, full.CanSendMessages)
	assert.True(t, full.CanSendVideos)
	assert.True(t, full.CanSendOtherMessages)
	assert.True(t, full.CanAddWebPagePreviews)
}

func TestInlineKeyboard(t *testing.T) {
	t.Parallel()

	assert.Nil(t, inlineKeyboard(nil))
	keyboard := inlineKeyboard(&moderation.Markup{Rows: [][]moderation.Button{
		{{Text: "a1", Data: "captcha:7:a1"}, {Text: "b2", Data: "captcha:7:b2"}},
	}})
	require.NotNil(t, keyboard)
	require.Len(t, keyboard.InlineKeyboard, 1)
	require.Len(t, keyboard.InlineKeyboard[0], 2)
	assert.Equal(t, "b2", keyboard.InlineKeyboard[0][1].Text)
	require.NotNil(t, keyboard.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "captcha:7:b2", *keyboard.InlineKeyboard[0][1].CallbackData)
}

func TestUntilDate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, untilDate(time.Time{}))
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Unix(), untilDate(at))
}
