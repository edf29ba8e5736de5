package moderation

import (
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
)

type AdmissionKind int

const (
	AdmitAllow AdmissionKind = iota
	AdmitChallenge
	AdmitDeny
	AdmitLeave
)

func (k AdmissionKind) String() string {
	switch k {
	case AdmitChallenge:
		return "challenge"
	case AdmitDeny:
		return "deny"
	case AdmitLeave:
		return "leave"
	default:
		return "allow"
	}
}

const (
	DenyRaid          = "raid"
	DenyAccountTooNew = "account too new"
	DenyNoPhoto       = "no profile photo"
)

type Admission struct {
	Kind   AdmissionKind
	Reason string
}

// Profile is what is known about a joining user. A zero CreatedAt means the
// platform did not disclose the account age.
type Profile struct {
	CreatedAt time.Time
	HasPhoto  bool
}

// admit runs the join checks in order and stops at the first failing one.
func admit(settings *db.Settings, raid RaidVerdict, profile Profile, now time.Time) Admission {
	if settings == nil || !settings.Authorized {
		return Admission{Kind: AdmitLeave}
	}
	if raid == RaidDetected {
		return Admission{Kind: AdmitDeny, Reason: DenyRaid}
	}
	if settings.MinAccountAgeDays > 0 && !profile.CreatedAt.IsZero() {
		days := int(now.Sub(profile.CreatedAt) / (24 * time.Hour))
		if days < settings.MinAccountAgeDays {
			return Admission{Kind: AdmitDeny, Reason: DenyAccountTooNew}
		}
	}
	if settings.RequireProfilePhoto && !profile.HasPhoto {
		return Admission{Kind: AdmitDeny, Reason: DenyNoPhoto}
	}
	if !settings.CaptchaEnabled {
		return Admission{Kind: AdmitAllow}
	}
	return Admission{Kind: AdmitChallenge}
}
