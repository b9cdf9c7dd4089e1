// Package escalation maps how long a guest has been calling to an urgency tier.
package escalation

import (
	"encoding/json"
	"math"
	"time"

	"seat-allocation-backend/internal/model"
)

// Tier is a discrete urgency level.
type Tier int

// Tiers in increasing urgency.
const (
	// Normal covers the first 15 seconds after an update.
	Normal Tier = iota
	// Elevated covers more than 15 and up to 45 seconds.
	Elevated
	// High covers more than 45 and up to 90 seconds.
	High
	// Critical is anything past 90 seconds.
	Critical
)

// Upper bounds (inclusive, in seconds) of each tier below Critical.
const (
	normalUntil   = 15
	elevatedUntil = 45
	highUntil     = 90
)

// String returns the tier name. Unknown values read as Normal.
func (t Tier) String() string {
	switch t {
	case Elevated:
		return "Elevated"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return "Normal"
	}
}

// MarshalJSON encodes the tier by name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// TierFor buckets an elapsed time. Each bound belongs to the lower tier.
func TierFor(elapsedSeconds float64) Tier {
	switch {
	case elapsedSeconds > highUntil:
		return Critical
	case elapsedSeconds > elevatedUntil:
		return High
	case elapsedSeconds > normalUntil:
		return Elevated
	default:
		return Normal
	}
}

// Elapsed is the whole number of seconds from updatedAt to now, floored.
// Clock skew that puts updatedAt in the future counts as zero.
func Elapsed(now, updatedAt time.Time) int64 {
	d := now.Sub(updatedAt)
	if d <= 0 {
		return 0
	}
	return int64(math.Floor(d.Seconds()))
}

// TierAt is TierFor applied to Elapsed(now, updatedAt).
func TierAt(now, updatedAt time.Time) Tier {
	return TierFor(float64(Elapsed(now, updatedAt)))
}

// Applies reports whether a calling flag is subject to escalation.
func Applies(flag model.CallingFlag) bool {
	return flag.IsCalling()
}
