package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/achievements/internal/logging"
	"github.com/dmitrijs2005/achievements/internal/server/config"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
	"github.com/stretchr/testify/require"
)

var (
	t0  = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1  = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// fakeRepo records the last call and returns canned outputs.
type fakeRepo struct {
	createOut *models.Achievement
	createErr error

	findOneOut *models.Achievement
	findOneErr error

	findOut []*models.Achievement
	findErr error

	updateOut *models.Achievement
	updateErr error

	manyOut int64
	manyErr error

	removeOut *models.Achievement
	removeErr error

	calls        int
	lastFilter   achievements.Filter
	lastMutation achievements.Mutation
	lastOpts     achievements.ListOptions
	lastCreated  *models.Achievement
	sawDeadline  bool
}

func (f *fakeRepo) record(ctx context.Context, flt achievements.Filter) {
	f.calls++
	f.lastFilter = flt
	_, f.sawDeadline = ctx.Deadline()
}

func (f *fakeRepo) Create(ctx context.Context, a *models.Achievement) (*models.Achievement, error) {
	f.record(ctx, achievements.ByID(a.ID))
	f.lastCreated = a
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return a, nil
}

func (f *fakeRepo) FindOne(ctx context.Context, flt achievements.Filter) (*models.Achievement, error) {
	f.record(ctx, flt)
	return f.findOneOut, f.findOneErr
}

func (f *fakeRepo) Find(ctx context.Context, flt achievements.Filter, opts achievements.ListOptions) ([]*models.Achievement, error) {
	f.record(ctx, flt)
	f.lastOpts = opts
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRepo) FindOneAndUpdate(ctx context.Context, flt achievements.Filter, m achievements.Mutation) (*models.Achievement, error) {
	f.record(ctx, flt)
	f.lastMutation = m
	return f.updateOut, f.updateErr
}

func (f *fakeRepo) UpdateMany(ctx context.Context, flt achievements.Filter, m achievements.Mutation) (int64, error) {
	f.record(ctx, flt)
	f.lastMutation = m
	return f.manyOut, f.manyErr
}

func (f *fakeRepo) FindOneAndRemove(ctx context.Context, flt achievements.Filter) (*models.Achievement, error) {
	f.record(ctx, flt)
	return f.removeOut, f.removeErr
}

func newService(t *testing.T, repo achievements.Repository) *AchievementService {
	t.Helper()
	cfg := &config.Config{StoreTimeout: time.Second}
	s := NewAchievementService(repo, logging.NewDiscardLogger(), cfg)
	s.st.now = func() time.Time { return now }
	return s
}

func newMemoryService(t *testing.T, items ...*models.Achievement) (*AchievementService, *achievements.InMemoryRepository) {
	t.Helper()
	repo := achievements.NewInMemoryRepository()
	for _, a := range items {
		_, err := repo.Create(context.Background(), a)
		require.NoError(t, err)
	}
	return newService(t, repo), repo
}

func activeAchievement(id string, kind models.Kind) *models.Achievement {
	return &models.Achievement{
		ID: id, Name: id, Kind: kind, Value: 10,
		Validity: models.Validity{From: t0, To: t1},
		Users:    []string{},
	}
}
