package points

import (
	"testing"

	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speedDate(value float64, users ...string) *models.Achievement {
	return &models.Achievement{ID: "speedDate-acme-1", Kind: models.KindSpeedDate, Value: value, Users: users}
}

func TestSpeedDatePoints_Decay(t *testing.T) {
	a := speedDate(100, "u1", "u1", "u1", "u1")

	assert.InDelta(t, 175.0, SpeedDatePoints(a, "u1"), 1e-9)
}

func TestSpeedDatePoints_PerOccurrence(t *testing.T) {
	want := []float64{100, 150, 175, 175, 175}

	for n := 1; n <= len(want); n++ {
		users := make([]string, n)
		for i := range users {
			users[i] = "u1"
		}
		assert.InDelta(t, want[n-1], SpeedDatePoints(speedDate(100, users...), "u1"), 1e-9, "occurrences=%d", n)
	}
}

func TestSpeedDatePoints_InterleavedUsers(t *testing.T) {
	a := speedDate(40, "u2", "u1", "u2", "u1", "u2")

	assert.InDelta(t, 60.0, SpeedDatePoints(a, "u1"), 1e-9)
	assert.InDelta(t, 70.0, SpeedDatePoints(a, "u2"), 1e-9)
	assert.Zero(t, SpeedDatePoints(a, "u3"))
	assert.Zero(t, SpeedDatePoints(nil, "u1"))
}

func TestUserFrequence_Caps(t *testing.T) {
	assert.Equal(t, 3, UserFrequence(speedDate(10, "u1", "u1", "u1", "u1", "u1"), "u1"))
	assert.Equal(t, 2, UserFrequence(speedDate(10, "u1", "u2", "u1"), "u1"))
	assert.Equal(t, 0, UserFrequence(speedDate(10, "u2"), "u1"))
	assert.Equal(t, 0, UserFrequence(nil, "u1"))
}

func TestForUser_FlatScoreIgnoresDuplicatesAndSpeedDates(t *testing.T) {
	active := []*models.Achievement{
		{ID: "a", Kind: models.KindKeynote, Value: 10, Users: []string{"u1", "u1"}},
		{ID: "b", Kind: models.KindWorkshop, Value: 20, Users: []string{"u2"}},
		{ID: "c", Kind: models.KindStand, Value: 5, Users: []string{"u1"}},
		speedDate(100, "u1"),
		nil,
	}

	res := ForUser(active, "u1")

	assert.InDelta(t, 15.0, res.Points, 1e-9)
	require.Len(t, res.Achievements, 2)
	assert.Equal(t, "a", res.Achievements[0].ID)
	assert.Equal(t, "c", res.Achievements[1].ID)
}

func TestForUser_NoMatches(t *testing.T) {
	res := ForUser(nil, "u1")

	assert.Zero(t, res.Points)
	assert.NotNil(t, res.Achievements)
	assert.Empty(t, res.Achievements)
}

func TestSpeedDateForUser(t *testing.T) {
	all := []*models.Achievement{
		speedDate(100, "u1", "u1", "u1", "u1", "u1"),
		speedDate(10, "u2"),
		{ID: "k", Kind: models.KindKeynote, Value: 99, Users: []string{"u1"}},
	}

	res := SpeedDateForUser(all, "u1")

	assert.InDelta(t, 175.0, res.Points, 1e-9)
	require.Len(t, res.Achievements, 2)
	assert.Equal(t, 3, res.Achievements[0].Frequence)
	assert.Equal(t, 0, res.Achievements[1].Frequence)
}

func TestTotal(t *testing.T) {
	active := []*models.Achievement{
		{ID: "a", Kind: models.KindKeynote, Value: 10, Users: []string{"u1"}},
	}
	speedDates := []*models.Achievement{speedDate(100, "u1", "u1")}

	assert.InDelta(t, 160.0, Total(active, speedDates, "u1"), 1e-9)
}
