package permissions

import (
	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

func IsManager(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	if member.IsCreator() {
		return true
	}
	return member.IsAdministrator() && (member.CanManageChat || member.CanPromoteMembers)
}

// CanModerate reports whether the member may restrict, ban and delete.
func CanModerate(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	if member.IsCreator() {
		return true
	}
	return member.IsAdministrator() && member.CanRestrictMembers && member.CanDeleteMessages
}

// Status maps a platform member to the moderation status.
func Status(member *api.ChatMember) moderation.MemberStatus {
	switch {
	case member == nil:
		return moderation.StatusUnknown
	case member.IsCreator():
		return moderation.StatusOwner
	case member.IsAdministrator():
		return moderation.StatusAdministrator
	case member.HasLeft():
		return moderation.StatusLeft
	case member.WasKicked():
		return moderation.StatusKicked
	case member.Status == "restricted":
		return moderation.StatusRestricted
	default:
		return moderation.StatusMember
	}
}

// BotStatus is the bot's own status as far as moderation is concerned: an
// administrator without the rights to moderate counts as a plain member.
func BotStatus(member *api.ChatMember) moderation.MemberStatus {
	status := Status(member)
	if status == moderation.StatusAdministrator && !CanModerate(member) {
		return moderation.StatusMember
	}
	return status
}
