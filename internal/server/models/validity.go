package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
)

// Validity is the closed interval [From, To] during which an achievement may
// be granted or counted.
type Validity struct {
	From time.Time `json:"from" bson:"from"`
	To   time.Time `json:"to" bson:"to"`
}

// IsActiveAt reports whether From <= t <= To.
func (v Validity) IsActiveAt(t time.Time) bool {
	return !t.Before(v.From) && !t.After(v.To)
}

// Overlaps reports whether [start, end] intersects the window. A degenerate
// range (start == end) is a point-in-time check. Range queries in the
// stores use Contained; Overlaps is kept for callers that need the looser
// intersection test.
func (v Validity) Overlaps(start, end time.Time) bool {
	if start.Equal(end) {
		return v.IsActiveAt(start)
	}
	return !v.From.After(end) && !start.After(v.To)
}

// Contained reports whether the whole window lies inside [start, end].
func (v Validity) Contained(start, end time.Time) bool {
	return !v.From.Before(start) && !v.To.After(end)
}

// Validate checks that both bounds are set and From <= To.
func (v Validity) Validate() error {
	if v.From.IsZero() || v.To.IsZero() {
		return fmt.Errorf("%w: validity bounds are required", common.ErrorValidation)
	}
	if v.From.After(v.To) {
		return fmt.Errorf("%w: validity.from %s is after validity.to %s",
			common.ErrorValidation, v.From.Format(time.RFC3339), v.To.Format(time.RFC3339))
	}
	return nil
}
