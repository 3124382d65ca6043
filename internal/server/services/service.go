// Package services contains the achievement engine: the grant rules, the
// redemption code issuer and the AchievementService operation set exposed to
// callers. Store faults never leave this package; they are logged and
// replaced by common.ErrorInternal.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/logging"
	"github.com/dmitrijs2005/achievements/internal/server/config"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
)

// store wraps a repository with the per-call deadline, the clock and the
// error policy shared by every component of the package.
type store struct {
	repo    achievements.Repository
	logger  logging.Logger
	timeout time.Duration
	now     func() time.Time
}

func newStore(repo achievements.Repository, logger logging.Logger, timeout time.Duration) *store {
	return &store{
		repo:    repo,
		logger:  logger,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *store) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// fail passes domain errors through and turns everything else into
// common.ErrorInternal after logging it with the offending arguments.
func (s *store) fail(ctx context.Context, op string, err error, args ...any) error {
	if errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrorConflict) ||
		errors.Is(err, common.ErrorValidation) ||
		errors.Is(err, common.ErrorBadRequest) {
		return err
	}
	s.logger.Error(ctx, "error "+op, append(args, "err", err)...)
	return fmt.Errorf("%w: %s", common.ErrorInternal, op)
}

// AchievementService is the operation set of the achievement engine.
// Construct it once and share it; it holds no mutable state.
type AchievementService struct {
	st     *store
	grants *GrantEngine
	codes  *CodeIssuer
}

// NewAchievementService wires the service over a repository using the store
// timeout from cfg.
func NewAchievementService(repo achievements.Repository, logger logging.Logger, cfg *config.Config) *AchievementService {
	st := newStore(repo, logger.With("module", "achievements"), cfg.StoreTimeout)
	return &AchievementService{
		st:     st,
		grants: &GrantEngine{st: st},
		codes:  &CodeIssuer{st: st},
	}
}
