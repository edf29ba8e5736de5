package moderation

import (
	"time"
)

// MuteRecord marks a member restricted by this system until Until.
type MuteRecord struct {
	Until  time.Time
	Reason string
}

func (r *MuteRecord) Active(now time.Time) bool {
	return r != nil && now.Before(r.Until)
}
