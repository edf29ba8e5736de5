package moderation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/state"
)

// WarningStore persists warning counters. An absent entry reads as zero.
type WarningStore interface {
	GetWarnings(ctx context.Context, chatID, userID int64) (int, error)
	SetWarnings(ctx context.Context, chatID, userID int64, count int) error
	DeleteWarnings(ctx context.Context, chatID, userID int64) error
}

type WarnResult struct {
	Count  int
	Banned bool
}

// Ledger escalates warnings. Each read-modify-write holds the member's lock, so a
// count at or above the limit is never left behind for another caller to observe.
type Ledger struct {
	store WarningStore
	locks *state.Locker
}

func NewLedger(store WarningStore) *Ledger {
	return &Ledger{store: store, locks: state.NewLocker()}
}

// Warn increments the counter. Reaching maxWarns resets the entry and reports Banned;
// issuing the ban is the caller's job. A non-positive maxWarns never bans.
func (l *Ledger) Warn(ctx context.Context, chatID, userID int64, maxWarns int) (WarnResult, error) {
	unlock := l.locks.Lock(state.Key{ChatID: chatID, UserID: userID})
	defer unlock()

	count, err := l.store.GetWarnings(ctx, chatID, userID)
	if err != nil {
		return WarnResult{}, errors.WithMessage(err, "read warnings")
	}
	count++
	if maxWarns > 0 && count >= maxWarns {
		if err := l.store.DeleteWarnings(ctx, chatID, userID); err != nil {
			return WarnResult{}, errors.WithMessage(err, "reset warnings")
		}
		return WarnResult{Count: count, Banned: true}, nil
	}
	if err := l.store.SetWarnings(ctx, chatID, userID, count); err != nil {
		return WarnResult{}, errors.WithMessage(err, "store warnings")
	}
	return WarnResult{Count: count}, nil
}

// Unwarn decrements the counter with a floor of zero, deleting the entry at zero.
func (l *Ledger) Unwarn(ctx context.Context, chatID, userID int64) (int, error) {
	unlock := l.locks.Lock(state.Key{ChatID: chatID, UserID: userID})
	defer unlock()

	count, err := l.store.GetWarnings(ctx, chatID, userID)
	if err != nil {
		return 0, errors.WithMessage(err, "read warnings")
	}
	if count <= 1 {
		if count == 1 {
			if err := l.store.DeleteWarnings(ctx, chatID, userID); err != nil {
				return 0, errors.WithMessage(err, "delete warnings")
			}
		}
		return 0, nil
	}
	count--
	if err := l.store.SetWarnings(ctx, chatID, userID, count); err != nil {
		return 0, errors.WithMessage(err, "store warnings")
	}
	return count, nil
}

func (l *Ledger) Count(ctx context.Context, chatID, userID int64) (int, error) {
	unlock := l.locks.Lock(state.Key{ChatID: chatID, UserID: userID})
	defer unlock()

	count, err := l.store.GetWarnings(ctx, chatID, userID)
	if err != nil {
		return 0, errors.WithMessage(err, "read warnings")
	}
	return count, nil
}

// Reset removes the entry, e.g. after a moderator ban.
func (l *Ledger) Reset(ctx context.Context, chatID, userID int64) error {
	unlock := l.locks.Lock(state.Key{ChatID: chatID, UserID: userID})
	defer unlock()

	return errors.WithMessage(l.store.DeleteWarnings(ctx, chatID, userID), "reset warnings")
}
