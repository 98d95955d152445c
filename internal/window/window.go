// Package window caps query time windows at cluster age so that a query
// never reaches back before the cluster existed.
package window

import "time"

const day = 24 * time.Hour

// Adjust returns a corrected window length in days when a cluster created at
// created is younger than requestedDays at reference. The second return value
// is false when no correction is needed.
//
// Zero instants are treated as unknown and never trigger a correction.
func Adjust(requestedDays int, reference, created time.Time) (int, bool) {
	if reference.IsZero() || created.IsZero() || requestedDays < 0 {
		return 0, false
	}

	reference = reference.UTC()
	created = created.UTC()

	start := reference.Add(-time.Duration(requestedDays) * day)
	if !start.Before(created) {
		return 0, false
	}

	age := reference.Sub(created)
	if age < 0 {
		return 0, true
	}
	return int(age / day), true
}

// Reference resolves the instant a report is generated for
func Reference(at *time.Time, now func() time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return at.UTC()
	}
	if now == nil {
		now = time.Now
	}
	return now().UTC()
}
