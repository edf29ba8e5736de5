package permissions

import (
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		member *api.ChatMember
		want   moderation.MemberStatus
	}{
		{nil, moderation.StatusUnknown},
		{&api.ChatMember{Status: "creator"}, moderation.StatusOwner},
		{&api.ChatMember{Status: "administrator"}, moderation.StatusAdministrator},
		{&api.ChatMember{Status: "member"}, moderation.StatusMember},
		{&api.ChatMember{Status: "restricted"}, moderation.StatusRestricted},
		{&api.ChatMember{Status: "left"}, moderation.StatusLeft},
		{&api.ChatMember{Status: "kicked"}, moderation.StatusKicked},
	}
	for _, tc := range cases {
		if got := Status(tc.member); got != tc.want {
			t.Fatalf("status of %+v: got %q want %q", tc.member, got, tc.want)
		}
	}
}

func TestBotStatusRequiresModerationRights(t *testing.T) {
	t.Parallel()

	weak := &api.ChatMember{Status: "administrator", CanDeleteMessages: true}
	if got := BotStatus(weak); got != moderation.StatusMember {
		t.Fatalf("admin without restrict rights must count as member, got %q", got)
	}
	strong := &api.ChatMember{Status: "administrator", CanDeleteMessages: true, CanRestrictMembers: true}
	if got := BotStatus(strong); got != moderation.StatusAdministrator {
		t.Fatalf("unexpected status %q", got)
	}
	if !IsManager(&api.ChatMember{Status: "creator"}) {
		t.Fatalf("creator must manage the chat")
	}
}
