// Package achievements provides the achievement store: a Repository
// contract built around atomic predicate+mutation calls, with PostgreSQL,
// MongoDB and in-memory implementations.
package achievements

import (
	"context"

	"github.com/dmitrijs2005/achievements/internal/server/models"
)

// Repository persists achievements. Every roster or code change goes through
// FindOneAndUpdate or UpdateMany so that concurrent grants never read and
// write back a stale document.
type Repository interface {
	Create(ctx context.Context, a *models.Achievement) (*models.Achievement, error)
	FindOne(ctx context.Context, f Filter) (*models.Achievement, error)
	Find(ctx context.Context, f Filter, opts ListOptions) ([]*models.Achievement, error)
	FindOneAndUpdate(ctx context.Context, f Filter, m Mutation) (*models.Achievement, error)
	UpdateMany(ctx context.Context, f Filter, m Mutation) (int64, error)
	FindOneAndRemove(ctx context.Context, f Filter) (*models.Achievement, error)
}
