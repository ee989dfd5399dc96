package history

import "time"

// Snapshot is one pool's APY on one calendar day. Dates are UTC,
// day-granular.
type Snapshot struct {
	Date string  `json:"date"` // formatted 2006-01-02
	APY  float64 `json:"apy"`
}

// DateOf formats a timestamp to the calendar-day key used throughout the
// store.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// retentionDays caps each pool's history; older snapshots fall off.
const retentionDays = 30

// minSamplesForAverage is the floor below which an average would look
// misleadingly precise and is reported as absent instead.
const minSamplesForAverage = 3

// Store is the narrow persistence surface behind the averaging logic.
// Implementations must keep each pool's snapshots ordered newest first,
// upsert by date (at most one snapshot per identity per day), and enforce
// the retention cap on insert. Identities are independent; no cross-identity
// consistency is required.
type Store interface {
	// Get returns the snapshot for one identity and day.
	Get(identity, date string) (Snapshot, bool, error)

	// Put upserts a snapshot into the identity's history.
	Put(identity string, snap Snapshot) error

	// Recent returns up to n most recent snapshots, newest first.
	Recent(identity string, n int) ([]Snapshot, error)
}

// upsert inserts a snapshot into a newest-first day-ordered list, replacing
// any same-day entry, and truncates to the retention cap. Shared by the
// store implementations.
func upsert(snaps []Snapshot, snap Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps)+1)
	inserted := false
	for _, existing := range snaps {
		switch {
		case existing.Date == snap.Date:
			if !inserted {
				out = append(out, snap)
				inserted = true
			}
		case !inserted && existing.Date < snap.Date:
			out = append(out, snap, existing)
			inserted = true
		default:
			out = append(out, existing)
		}
	}
	if !inserted {
		out = append(out, snap)
	}
	if len(out) > retentionDays {
		out = out[:retentionDays]
	}
	return out
}
