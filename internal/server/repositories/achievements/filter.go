package achievements

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/achievements/internal/server/models"
)

// Range is a closed time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// CodeMatch constrains an achievement to carry Code and to have it
// redeemable at At.
type CodeMatch struct {
	Code string
	At   time.Time
}

// Predicate selects achievements. Zero-valued fields do not constrain.
type Predicate struct {
	ID      string
	Session string
	Kind    models.Kind
	Company string
	User    string

	// ActiveAt keeps achievements whose validity contains the instant.
	ActiveAt *time.Time
	// NotExpiredAt keeps achievements whose validity ends at or after the instant.
	NotExpiredAt *time.Time
	// ContainedIn keeps achievements whose whole validity lies inside the range.
	ContainedIn *Range

	Code *CodeMatch
}

// Filter selects achievements either by id or by a Predicate.
type Filter struct {
	byID bool
	pred Predicate
}

// ByID selects the achievement with the given id. An empty id matches
// nothing.
func ByID(id string) Filter {
	return Filter{byID: true, pred: Predicate{ID: id}}
}

// ByPredicate selects every achievement matching p.
func ByPredicate(p Predicate) Filter {
	return Filter{pred: p}
}

// All matches every achievement.
func All() Filter {
	return Filter{}
}

// Predicate returns the normalized predicate behind the filter.
func (f Filter) Predicate() Predicate {
	return f.pred
}

// ExactID returns the id of a ByID filter.
func (f Filter) ExactID() (string, bool) {
	return f.pred.ID, f.byID
}

// Matches reports whether a satisfies the filter.
func (f Filter) Matches(a *models.Achievement) bool {
	if f.byID {
		return a != nil && a.ID == f.pred.ID
	}
	return f.pred.Matches(a)
}

// String renders the filter for log lines.
func (f Filter) String() string {
	if f.byID {
		return "id=" + f.pred.ID
	}
	return f.pred.String()
}

// Matches reports whether a satisfies every set field of p.
func (p Predicate) Matches(a *models.Achievement) bool {
	if a == nil {
		return false
	}
	if p.ID != "" && a.ID != p.ID {
		return false
	}
	if p.Session != "" && a.Session != p.Session {
		return false
	}
	if p.Kind != "" && a.Kind != p.Kind {
		return false
	}
	if p.Company != "" && a.Company != p.Company {
		return false
	}
	if p.User != "" && !a.HasUser(p.User) {
		return false
	}
	if p.ActiveAt != nil && !a.Validity.IsActiveAt(*p.ActiveAt) {
		return false
	}
	if p.NotExpiredAt != nil && a.Validity.To.Before(*p.NotExpiredAt) {
		return false
	}
	if p.ContainedIn != nil && !a.Validity.Contained(p.ContainedIn.Start, p.ContainedIn.End) {
		return false
	}
	if p.Code != nil {
		if a.Code == nil || a.Code.Code != p.Code.Code || !a.Code.ValidAt(p.Code.At) {
			return false
		}
	}
	return true
}

// String renders the set fields of p. Redemption codes are masked.
func (p Predicate) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("id", p.ID)
	add("session", p.Session)
	add("kind", string(p.Kind))
	add("company", p.Company)
	add("user", p.User)
	if p.ActiveAt != nil {
		add("activeAt", p.ActiveAt.Format(time.RFC3339))
	}
	if p.NotExpiredAt != nil {
		add("notExpiredAt", p.NotExpiredAt.Format(time.RFC3339))
	}
	if p.ContainedIn != nil {
		add("containedIn", fmt.Sprintf("[%s,%s]",
			p.ContainedIn.Start.Format(time.RFC3339), p.ContainedIn.End.Format(time.RFC3339)))
	}
	if p.Code != nil {
		add("code", "***")
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}
