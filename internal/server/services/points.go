package services

import (
	"context"

	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/dmitrijs2005/achievements/internal/server/points"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
)

// GetPointsForUser scores userID over the given active achievements. Speed
// dates are left to GetSpeedDatePointsForUser.
func (s *AchievementService) GetPointsForUser(_ context.Context, active []*models.Achievement, userID string) (points.Result, error) {
	return points.ForUser(active, userID), nil
}

// GetSpeedDatePointsForUser scores userID over every speed-date achievement,
// whatever its validity.
func (s *AchievementService) GetSpeedDatePointsForUser(ctx context.Context, userID string) (points.SpeedDateResult, error) {
	list, err := s.speedDates(ctx)
	if err != nil {
		return points.SpeedDateResult{}, err
	}
	return points.SpeedDateForUser(list, userID), nil
}

// GetTotalPointsForUser is the flat score over the user's active
// achievements plus the decayed score over every speed date.
func (s *AchievementService) GetTotalPointsForUser(ctx context.Context, userID string) (float64, error) {
	active, err := s.GetByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	speedDates, err := s.speedDates(ctx)
	if err != nil {
		return 0, err
	}
	return points.Total(active, speedDates, userID), nil
}

func (s *AchievementService) speedDates(ctx context.Context) ([]*models.Achievement, error) {
	return s.find(ctx, "finding speed date achievements",
		achievements.ByPredicate(achievements.Predicate{Kind: models.KindSpeedDate}), achievements.ListOptions{})
}
