package moderation

import (
	"regexp"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/state"
)

const (
	mediaWindow = time.Minute

	ReasonFlood = "flood"
	ReasonLink  = "link"
	ReasonMedia = "media"
)

var linkPattern = regexp.MustCompile(`(?i)(?:[a-z][a-z0-9+.\-]*://|www\.)[a-z0-9\-.]+\.[a-z]{2,}`)

type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictMuted
	VerdictWarned
)

func (v Verdict) String() string {
	switch v {
	case VerdictMuted:
		return "muted"
	case VerdictWarned:
		return "warned"
	default:
		return "pass"
	}
}

type Message struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	HasMedia  bool
	At        time.Time
}

// FloodDecision lists what the caller must do for a message. The filter itself does no I/O.
type FloodDecision struct {
	Verdict    Verdict
	Delete     bool
	LiftMute   bool
	MuteUntil  time.Time
	WarnReason string
}

type memberState struct {
	flood RateWindow
	media RateWindow
	mute  *MuteRecord
}

func (m memberState) idle(now time.Time, span time.Duration) bool {
	return m.mute == nil && m.flood.Prune(now, span).Empty() && m.media.Prune(now, mediaWindow).Empty()
}

// FloodFilter holds per-member rate windows and mutes. All checks for one message
// run inside a single atomic update of the member's record.
type FloodFilter struct {
	members *state.Store[memberState]
}

func NewFloodFilter() *FloodFilter {
	return &FloodFilter{members: state.NewStore[memberState]()}
}

func (f *FloodFilter) Evaluate(settings *db.Settings, msg Message) FloodDecision {
	key := state.Key{ChatID: msg.ChatID, UserID: msg.UserID}
	now := msg.At
	var decision FloodDecision

	f.members.Update(key, func(cur memberState, _ bool) (memberState, bool) {
		if cur.mute != nil {
			if cur.mute.Active(now) {
				decision = FloodDecision{Verdict: VerdictMuted, Delete: true}
				return cur, true
			}
			cur.mute = nil
			decision.LiftMute = true
		}

		if settings.FloodEnabled && settings.FloodLimit > 0 {
			cur.flood = cur.flood.Observe(now, settings.GetFloodWindow())
			if cur.flood.Count() > settings.FloodLimit {
				until := now.Add(settings.GetMuteDuration())
				cur.flood = RateWindow{}
				cur.mute = &MuteRecord{Until: until, Reason: ReasonFlood}
				decision.Verdict = VerdictMuted
				decision.Delete = true
				decision.MuteUntil = until
				return cur, true
			}
		}

		if settings.LinkBlockEnabled && linkPattern.MatchString(msg.Text) {
			decision.Verdict = VerdictWarned
			decision.Delete = true
			decision.WarnReason = ReasonLink
			return cur, true
		}

		if msg.HasMedia && settings.MediaLimit > 0 {
			cur.media = cur.media.Observe(now, mediaWindow)
			if cur.media.Count() > settings.MediaLimit {
				cur.media = RateWindow{}
				decision.Verdict = VerdictWarned
				decision.Delete = true
				decision.WarnReason = ReasonMedia
			}
		}
		return cur, !cur.idle(now, settings.GetFloodWindow())
	})
	return decision
}

// Mute records an explicit moderator mute, replacing any running one.
func (f *FloodFilter) Mute(key state.Key, until time.Time, reason string) {
	f.members.Update(key, func(cur memberState, _ bool) (memberState, bool) {
		cur.mute = &MuteRecord{Until: until, Reason: reason}
		return cur, true
	})
}

// Unmute removes the mute record and reports whether one existed.
func (f *FloodFilter) Unmute(key state.Key) bool {
	removed := false
	f.members.Update(key, func(cur memberState, exists bool) (memberState, bool) {
		if !exists {
			return cur, false
		}
		removed = cur.mute != nil
		cur.mute = nil
		return cur, true
	})
	return removed
}

func (f *FloodFilter) MuteOf(key state.Key) (MuteRecord, bool) {
	cur, ok := f.members.Get(key)
	if !ok || cur.mute == nil {
		return MuteRecord{}, false
	}
	return *cur.mute, true
}

// Sweep clears mutes whose deadline passed and forgets idle members.
// It returns the keys whose mute was cleared so permissions can be restored.
func (f *FloodFilter) Sweep(now time.Time, idle time.Duration) []state.Key {
	var lifted []state.Key
	f.members.Range(func(key state.Key, _ memberState) bool {
		f.members.Update(key, func(cur memberState, exists bool) (memberState, bool) {
			if !exists {
				return cur, false
			}
			if cur.mute != nil && !cur.mute.Active(now) {
				cur.mute = nil
				lifted = append(lifted, key)
			}
			return cur, !cur.idle(now, idle)
		})
		return true
	})
	return lifted
}

// Forget drops every member record of a chat.
func (f *FloodFilter) Forget(chatID int64) {
	f.members.Range(func(key state.Key, _ memberState) bool {
		if key.ChatID == chatID {
			f.members.Delete(key)
		}
		return true
	})
}
