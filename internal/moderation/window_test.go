package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateWindowKeepsOnlyTrailingSpan(t *testing.T) {
	t.Parallel()

	base := time.Unix(1_700_000_000, 0)
	var w RateWindow
	w = w.Observe(base, 3*time.Second)
	w = w.Observe(base.Add(time.Second), 3*time.Second)
	w = w.Observe(base.Add(2*time.Second), 3*time.Second)
	assert.Equal(t, 3, w.Count())

	// exactly span old is dropped
	w = w.Observe(base.Add(3*time.Second), 3*time.Second)
	assert.Equal(t, 3, w.Count())

	assert.True(t, w.Prune(base.Add(10*time.Second), 3*time.Second).Empty())
	assert.Equal(t, 3, w.Count(), "prune must not mutate the receiver")
}

func TestRaidDetectorFlagsJoinsOverLimit(t *testing.T) {
	t.Parallel()

	d := NewRaidDetector()
	base := time.Unix(1_700_000_000, 0)
	span := 10 * time.Second

	for i := 0; i < 3; i++ {
		assert.Equal(t, RaidNormal, d.ObserveJoin(-1, base.Add(time.Duration(i)*time.Second), 3, span), "join %d", i+1)
	}
	assert.Equal(t, RaidDetected, d.ObserveJoin(-1, base.Add(3*time.Second), 3, span))
	assert.Equal(t, RaidDetected, d.ObserveJoin(-1, base.Add(4*time.Second), 3, span), "no latch, but still over limit")
	assert.Equal(t, RaidNormal, d.ObserveJoin(-2, base.Add(4*time.Second), 3, span), "chats are independent")

	assert.Equal(t, RaidNormal, d.ObserveJoin(-1, base.Add(30*time.Second), 3, span), "window slid past the burst")
}

func TestRaidDetectorDisabledByZeroLimit(t *testing.T) {
	t.Parallel()

	d := NewRaidDetector()
	now := time.Now()
	for i := 0; i < 50; i++ {
		assert.Equal(t, RaidNormal, d.ObserveJoin(-1, now, 0, time.Minute))
	}
	assert.Equal(t, 0, d.joins.Size())
}

func TestRaidDetectorSweepDropsIdleLogs(t *testing.T) {
	t.Parallel()

	d := NewRaidDetector()
	now := time.Now()
	d.ObserveJoin(-1, now.Add(-2*time.Hour), 5, time.Minute)
	d.ObserveJoin(-2, now, 5, time.Minute)

	d.Sweep(now, time.Hour)
	assert.Equal(t, 1, d.joins.Size())
}
