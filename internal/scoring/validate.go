// Package scoring validates game-session telemetry and derives its metrics.
package scoring

import (
	"math"

	"github.com/clickrush/apiserver/types"
)

// MaxClicks is the largest click counter a score row can hold.
const MaxClicks = math.MaxInt32

// MinDuration is the shortest session that yields a representable cps.
const MinDuration = 0.001

// Submission carries the raw counters reported by a client.
type Submission struct {
	Mode          types.Mode
	ModeValue     int
	TotalClicks   int
	CorrectClicks int
	Duration      float64
	Consistency   *float64
}

// Validate checks a submission. Rules are applied in order and the
// first failure is returned.
func Validate(s Submission) error {
	if !s.Mode.Valid() {
		return InvalidMode(string(s.Mode))
	}
	if !s.Mode.Allows(s.ModeValue) {
		return InvalidModeValue(s.Mode, s.ModeValue)
	}
	if s.TotalClicks < 0 || s.CorrectClicks < 0 {
		return InvalidMetrics("clicks must be non-negative")
	}
	if s.TotalClicks > MaxClicks || s.CorrectClicks > MaxClicks {
		return InvalidMetrics("clicks must be at most 2147483647")
	}
	if s.CorrectClicks > s.TotalClicks {
		return InvalidMetrics("correct clicks cannot exceed total clicks")
	}
	if !(s.Duration > 0) {
		return InvalidMetrics("duration must be greater than zero")
	}
	if s.Duration < MinDuration {
		return InvalidMetrics("duration must be at least 0.001 seconds")
	}
	if math.IsInf(s.Duration, 1) {
		return InvalidMetrics("duration must be finite")
	}
	if s.Consistency != nil {
		c := *s.Consistency
		if !(c >= 0 && c <= 100) {
			return InvalidMetrics("consistency must be between 0 and 100")
		}
	}
	return nil
}
