// Package points computes user scores over achievement rosters. Everything
// here is pure: callers fetch the achievements, this package only counts.
package points

import (
	"github.com/dmitrijs2005/achievements/internal/server/models"
)

// MaxSpeedDateEncounters is the number of occurrences of a user in a
// speed-date roster that still earn points.
const MaxSpeedDateEncounters = 3

// Result is the flat score of a user together with the achievements that
// contributed to it.
type Result struct {
	Achievements []*models.Achievement
	Points       float64
}

// SpeedDateEntry pairs a speed-date achievement with the capped number of
// times the user appears in it.
type SpeedDateEntry struct {
	Achievement *models.Achievement
	Frequence   int
}

// SpeedDateResult is the decayed score of a user over speed-date achievements.
type SpeedDateResult struct {
	Achievements []SpeedDateEntry
	Points       float64
}

// ForUser sums Value once for every non speed-date achievement whose roster
// contains userID, no matter how often the id repeats.
func ForUser(active []*models.Achievement, userID string) Result {
	res := Result{Achievements: []*models.Achievement{}}

	for _, a := range active {
		if a == nil || a.Kind == models.KindSpeedDate || !a.HasUser(userID) {
			continue
		}
		res.Achievements = append(res.Achievements, a)
		res.Points += a.Value
	}

	return res
}

// SpeedDatePoints awards Value/2^c for the c-th occurrence (zero based) of
// userID in the roster while c < MaxSpeedDateEncounters.
func SpeedDatePoints(a *models.Achievement, userID string) float64 {
	if a == nil {
		return 0
	}

	var total float64
	c := 0
	for _, u := range a.Users {
		if u != userID {
			continue
		}
		if c >= MaxSpeedDateEncounters {
			break
		}
		total += a.Value / float64(int(1)<<c)
		c++
	}

	return total
}

// UserFrequence counts the occurrences of userID in the roster, capped at
// MaxSpeedDateEncounters.
func UserFrequence(a *models.Achievement, userID string) int {
	if a == nil {
		return 0
	}

	count := 0
	for _, u := range a.Users {
		if u == userID {
			count++
			if count == MaxSpeedDateEncounters {
				break
			}
		}
	}

	return count
}

// SpeedDateForUser reports every given speed-date achievement with the
// user's capped frequence and sums the decayed points. Achievements of other
// kinds are skipped.
func SpeedDateForUser(speedDates []*models.Achievement, userID string) SpeedDateResult {
	res := SpeedDateResult{Achievements: []SpeedDateEntry{}}

	for _, a := range speedDates {
		if a == nil || a.Kind != models.KindSpeedDate {
			continue
		}
		res.Points += SpeedDatePoints(a, userID)
		res.Achievements = append(res.Achievements, SpeedDateEntry{
			Achievement: a,
			Frequence:   UserFrequence(a, userID),
		})
	}

	return res
}

// Total is the flat score over active non speed-date achievements plus the
// decayed score over speed-date achievements.
func Total(active, speedDates []*models.Achievement, userID string) float64 {
	return ForUser(active, userID).Points + SpeedDateForUser(speedDates, userID).Points
}
