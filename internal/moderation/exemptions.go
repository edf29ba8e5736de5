package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/iamwavecut/ngguard/internal/state"
)

const (
	memberStatusCacheSize = 4096
	memberStatusCacheTTL  = time.Minute
)

type TrustedStore interface {
	IsTrusted(ctx context.Context, chatID, userID int64) (bool, error)
}

// Exemptions decides who is above the filters: the bot owner, masters,
// chat administrators and users trusted in that chat.
type Exemptions struct {
	ownerID   int64
	masters   map[int64]struct{}
	transport Transport
	trusted   TrustedStore
	statuses  *expirable.LRU[state.Key, MemberStatus]
	group     singleflight.Group
}

func NewExemptions(ownerID int64, masterIDs []int64, transport Transport, trusted TrustedStore) *Exemptions {
	masters := make(map[int64]struct{}, len(masterIDs))
	for _, id := range masterIDs {
		masters[id] = struct{}{}
	}
	return &Exemptions{
		ownerID:   ownerID,
		masters:   masters,
		transport: transport,
		trusted:   trusted,
		statuses:  expirable.NewLRU[state.Key, MemberStatus](memberStatusCacheSize, nil, memberStatusCacheTTL),
	}
}

func (e *Exemptions) getLogEntry() *log.Entry {
	return log.WithField("component", "exemptions")
}

// IsMaster reports bot-wide privileges that do not depend on the chat.
func (e *Exemptions) IsMaster(userID int64) bool {
	if userID == 0 {
		return false
	}
	if userID == e.ownerID {
		return true
	}
	_, ok := e.masters[userID]
	return ok
}

func (e *Exemptions) OwnerID() int64 {
	return e.ownerID
}

// Status returns the member status, cached for a minute per (chat, user).
func (e *Exemptions) Status(ctx context.Context, chatID, userID int64) (MemberStatus, error) {
	key := state.Key{ChatID: chatID, UserID: userID}
	if status, ok := e.statuses.Get(key); ok {
		return status, nil
	}
	v, err, _ := e.group.Do(fmt.Sprintf("%d:%d", chatID, userID), func() (any, error) {
		status, err := e.transport.MemberStatus(ctx, chatID, userID)
		if err != nil {
			return StatusUnknown, err
		}
		e.statuses.Add(key, status)
		return status, nil
	})
	if err != nil {
		return StatusUnknown, err
	}
	return v.(MemberStatus), nil
}

func (e *Exemptions) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	status, err := e.Status(ctx, chatID, userID)
	if err != nil {
		e.getLogEntry().WithFields(log.Fields{
			"chat":  chatID,
			"user":  userID,
			"error": err.Error(),
		}).Warn("cant get member status")
		return false
	}
	return status.IsAdmin()
}

func (e *Exemptions) IsTrusted(ctx context.Context, chatID, userID int64) bool {
	if e.trusted == nil {
		return false
	}
	ok, err := e.trusted.IsTrusted(ctx, chatID, userID)
	if err != nil {
		e.getLogEntry().WithField("error", err.Error()).Warn("cant check trusted admin")
		return false
	}
	return ok
}

// IsExempt is true for anyone allowed to moderate the chat.
func (e *Exemptions) IsExempt(ctx context.Context, chatID, userID int64) bool {
	return e.IsMaster(userID) || e.IsTrusted(ctx, chatID, userID) || e.IsAdmin(ctx, chatID, userID)
}

// Invalidate forgets a cached status after a membership change.
func (e *Exemptions) Invalidate(chatID, userID int64) {
	e.statuses.Remove(state.Key{ChatID: chatID, UserID: userID})
}
