package history

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/model"
)

// Tracker layers snapshot recording and window averaging over a Store.
// Store I/O failures are logged and swallowed here: history is a side
// channel, and losing a day's point only means that pool's average reads
// absent. It must never fail a yield run.
type Tracker struct {
	store Store
}

// NewTracker creates a Tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// RecordSnapshot upserts one pool's APY for the given day. Recording the
// same identity and day twice keeps the later value, which makes replays
// safe.
func (t *Tracker) RecordSnapshot(identity string, date time.Time, apy float64) {
	err := t.store.Put(identity, Snapshot{Date: DateOf(date), APY: apy})
	if err != nil {
		logrus.WithField("identity", identity).WithError(err).Warn("Failed to record history snapshot")
	}
}

// RecordRun persists one snapshot per record across all buckets, dated now.
func (t *Tracker) RecordRun(buckets model.Buckets, now time.Time) {
	for _, recs := range buckets.PerCategory {
		for _, rec := range recs {
			t.RecordSnapshot(IdentityFor(rec), now, rec.APYTotal)
		}
	}
	for _, rec := range buckets.RiskFlagged {
		t.RecordSnapshot(IdentityFor(rec), now, rec.APYTotal)
	}
}

// AverageOverWindow returns the arithmetic mean of up to windowDays most
// recent snapshots for the pool. ok is false when fewer than three
// snapshots exist, or when the store read fails.
func (t *Tracker) AverageOverWindow(identity string, windowDays int) (float64, bool) {
	snaps, err := t.store.Recent(identity, windowDays)
	if err != nil {
		logrus.WithField("identity", identity).WithError(err).Warn("Failed to read history")
		return 0, false
	}
	if len(snaps) < minSamplesForAverage {
		return 0, false
	}
	var sum float64
	for _, snap := range snaps {
		sum += snap.APY
	}
	return sum / float64(len(snaps)), true
}
