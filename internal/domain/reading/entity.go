package reading

import (
	"time"
)

// Reading is one immutable telemetry sample. Sequence is assigned by the
// store on append and only breaks ties between equal timestamps.
type Reading struct {
	ID        string
	Sequence  int64
	DeviceID  string
	Humidity  *float64
	Fluoride  float64
	Location  string
	Timestamp time.Time
	CreatedAt time.Time
}

// NewerThan reports whether r supersedes other in "most recent" order:
// later timestamp first, then later insertion.
func (r *Reading) NewerThan(other *Reading) bool {
	if other == nil {
		return r != nil
	}
	if r == nil {
		return false
	}
	if !r.Timestamp.Equal(other.Timestamp) {
		return r.Timestamp.After(other.Timestamp)
	}
	return r.Sequence > other.Sequence
}

// Freshest returns the newest non-nil reading among candidates.
func Freshest(candidates ...*Reading) *Reading {
	var best *Reading
	for _, c := range candidates {
		if c != nil && c.NewerThan(best) {
			best = c
		}
	}
	return best
}
