package moderation

import (
	"context"
	"time"
)

type MemberStatus string

const (
	StatusUnknown       MemberStatus = ""
	StatusOwner         MemberStatus = "owner"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

func (s MemberStatus) IsAdmin() bool {
	return s == StatusOwner || s == StatusAdministrator
}

type Permissions struct {
	SendMessages   bool
	SendMedia      bool
	SendOther      bool
	AddWebPreviews bool
}

var (
	NoPermissions   = Permissions{}
	FullPermissions = Permissions{SendMessages: true, SendMedia: true, SendOther: true, AddWebPreviews: true}
)

type Button struct {
	Text string
	Data string
}

type Markup struct {
	Rows [][]Button
}

// Transport executes moderation actions on the chat platform.
// A zero until means the restriction has no deadline.
type Transport interface {
	Restrict(ctx context.Context, chatID, userID int64, perms Permissions, until time.Time) error
	Ban(ctx context.Context, chatID, userID int64) error
	Unban(ctx context.Context, chatID, userID int64) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	PinMessage(ctx context.Context, chatID int64, messageID int) error
	Send(ctx context.Context, chatID int64, text string, markup *Markup) (int, error)
	MemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	Leave(ctx context.Context, chatID int64) error
}
