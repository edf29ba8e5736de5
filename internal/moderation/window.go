package moderation

import (
	"time"
)

// RateWindow is an ordered list of event timestamps trimmed to a trailing span.
// Values are never mutated in place so they can be replaced atomically in a Store.
type RateWindow struct {
	stamps []time.Time
}

// Observe appends at and drops every stamp with now-stamp >= span.
func (w RateWindow) Observe(at time.Time, span time.Duration) RateWindow {
	kept := make([]time.Time, 0, len(w.stamps)+1)
	for _, ts := range w.stamps {
		if at.Sub(ts) < span {
			kept = append(kept, ts)
		}
	}
	return RateWindow{stamps: append(kept, at)}
}

func (w RateWindow) Prune(now time.Time, span time.Duration) RateWindow {
	kept := make([]time.Time, 0, len(w.stamps))
	for _, ts := range w.stamps {
		if now.Sub(ts) < span {
			kept = append(kept, ts)
		}
	}
	return RateWindow{stamps: kept}
}

func (w RateWindow) Count() int {
	return len(w.stamps)
}

func (w RateWindow) Empty() bool {
	return len(w.stamps) == 0
}
