package moderation

import (
	"time"

	"github.com/iamwavecut/ngguard/internal/state"
)

type RaidVerdict int

const (
	RaidNormal RaidVerdict = iota
	RaidDetected
)

func (v RaidVerdict) String() string {
	if v == RaidDetected {
		return "raid"
	}
	return "normal"
}

// RaidDetector counts joins per chat over a trailing span. It only classifies;
// enforcement belongs to the caller. Every join is judged on its own, there is no lockdown latch.
type RaidDetector struct {
	joins *state.Store[RateWindow]
}

func NewRaidDetector() *RaidDetector {
	return &RaidDetector{joins: state.NewStore[RateWindow]()}
}

// ObserveJoin records a join and reports a raid when the live count exceeds limit.
// A non-positive limit disables detection.
func (d *RaidDetector) ObserveJoin(chatID int64, at time.Time, limit int, span time.Duration) RaidVerdict {
	if limit <= 0 || span <= 0 {
		return RaidNormal
	}
	window, _ := d.joins.Update(state.ChatKey(chatID), func(current RateWindow, _ bool) (RateWindow, bool) {
		return current.Observe(at, span), true
	})
	if window.Count() > limit {
		return RaidDetected
	}
	return RaidNormal
}

// Sweep drops join logs whose every stamp is older than idle.
func (d *RaidDetector) Sweep(now time.Time, idle time.Duration) {
	d.joins.Range(func(key state.Key, _ RateWindow) bool {
		d.joins.Update(key, func(current RateWindow, exists bool) (RateWindow, bool) {
			if !exists {
				return current, false
			}
			return current, !current.Prune(now, idle).Empty()
		})
		return true
	})
}

func (d *RaidDetector) Forget(chatID int64) {
	d.joins.Delete(state.ChatKey(chatID))
}
