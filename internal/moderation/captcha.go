package moderation

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/state"
)

type Resolution int

const (
	// ResolutionStale means no pending challenge matched; nothing must be done.
	ResolutionStale Resolution = iota
	// ResolutionIgnored leaves the challenge pending, e.g. typed text in button mode.
	ResolutionIgnored
	ResolutionVerified
	ResolutionFailed
	ResolutionExpired
)

func (r Resolution) String() string {
	switch r {
	case ResolutionIgnored:
		return "ignored"
	case ResolutionVerified:
		return "verified"
	case ResolutionFailed:
		return "failed"
	case ResolutionExpired:
		return "expired"
	default:
		return "stale"
	}
}

// Challenge is a pending verification of a freshly joined member.
type Challenge struct {
	ChatID          int64
	UserID          int64
	Mode            string
	Token           string
	Options         []string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	PromptMessageID int
	JoinMessageID   int
	Language        string

	nonce  uint64
	handle Handle
}

func (c Challenge) Nonce() uint64 {
	return c.nonce
}

// CaptchaSessions keeps at most one live challenge per (chat, user). Every terminal
// transition is a compare-and-clear on the record, so resolution and timeout cannot both win.
type CaptchaSessions struct {
	sessions  *state.Store[Challenge]
	scheduler Scheduler
	nonces    atomic.Uint64
}

func NewCaptchaSessions(scheduler Scheduler) *CaptchaSessions {
	return &CaptchaSessions{
		sessions:  state.NewStore[Challenge](),
		scheduler: scheduler,
	}
}

// Issue stores c unless a challenge is already live for the key, then schedules
// onExpire at c.ExpiresAt. It returns the live challenge and whether it was created now.
func (m *CaptchaSessions) Issue(c Challenge, onExpire func(ctx context.Context, key state.Key, nonce uint64)) (Challenge, bool) {
	key := state.Key{ChatID: c.ChatID, UserID: c.UserID}
	c.nonce = m.nonces.Add(1)
	created := false
	live, _ := m.sessions.Update(key, func(current Challenge, exists bool) (Challenge, bool) {
		if exists {
			return current, true
		}
		created = true
		return c, true
	})
	if !created {
		return live, false
	}

	nonce := c.nonce
	handle := m.scheduler.Schedule(c.ExpiresAt, func(ctx context.Context) {
		onExpire(ctx, key, nonce)
	})
	attached := false
	live, _ = m.sessions.Update(key, func(current Challenge, exists bool) (Challenge, bool) {
		if !exists || current.nonce != nonce {
			return current, exists
		}
		current.handle = handle
		attached = true
		return current, true
	})
	if !attached {
		handle.Cancel()
	}
	return live, true
}

// AttachPrompt remembers the prompt message so it can be removed on resolution.
func (m *CaptchaSessions) AttachPrompt(key state.Key, nonce uint64, messageID int) bool {
	attached := false
	m.sessions.Update(key, func(current Challenge, exists bool) (Challenge, bool) {
		if !exists || current.nonce != nonce {
			return current, exists
		}
		current.PromptMessageID = messageID
		attached = true
		return current, true
	})
	return attached
}

// Resolve applies an answer. pressed marks a button press rather than typed text.
// An answer at or after the deadline expires the challenge.
func (m *CaptchaSessions) Resolve(key state.Key, answer string, pressed bool, now time.Time) (Challenge, Resolution) {
	var (
		resolved   Challenge
		resolution = ResolutionStale
	)
	m.sessions.Update(key, func(current Challenge, exists bool) (Challenge, bool) {
		if !exists {
			return current, false
		}
		resolved = current
		switch {
		case !now.Before(current.ExpiresAt):
			resolution = ResolutionExpired
		case current.Mode == db.CaptchaModeButton:
			if !pressed {
				resolution = ResolutionIgnored
				return current, true
			}
			resolution = ResolutionVerified
		case strings.EqualFold(strings.TrimSpace(answer), current.Token):
			resolution = ResolutionVerified
		default:
			resolution = ResolutionFailed
		}
		if current.handle != nil {
			current.handle.Cancel()
		}
		return current, false
	})
	return resolved, resolution
}

// Expire clears the challenge only if it is still the one identified by nonce.
func (m *CaptchaSessions) Expire(key state.Key, nonce uint64) (Challenge, bool) {
	var (
		expired Challenge
		ok      bool
	)
	m.sessions.Update(key, func(current Challenge, exists bool) (Challenge, bool) {
		if !exists || current.nonce != nonce {
			return current, exists
		}
		expired, ok = current, true
		return current, false
	})
	return expired, ok
}

// Drop cancels and forgets any challenge for the key, e.g. when the member left.
func (m *CaptchaSessions) Drop(key state.Key) (Challenge, bool) {
	c, ok := m.sessions.Take(key)
	if ok && c.handle != nil {
		c.handle.Cancel()
	}
	return c, ok
}

func (m *CaptchaSessions) Pending(key state.Key) (Challenge, bool) {
	return m.sessions.Get(key)
}

func (m *CaptchaSessions) Len() int {
	return m.sessions.Size()
}
