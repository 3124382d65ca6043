package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/auth"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
)

// errSelfSignNotFound is returned for every failed self-service grant so the
// caller cannot tell a wrong code from an expired one or an unknown session.
var errSelfSignNotFound = fmt.Errorf("%w: error trying to add user to not valid achievement in session", common.ErrorNotFound)

// errNoSelector rejects an empty id before it reaches the store, where an
// empty predicate field does not constrain.
func errNoSelector(what string) error {
	return fmt.Errorf("%w: no %s given", common.ErrorBadRequest, what)
}

// GrantEngine decides who may be added to which achievement and performs the
// addition as a single conditional update.
type GrantEngine struct {
	st *store
}

// grant runs one predicate+mutation. A miss is reported as ErrorNotFound
// carrying notFound.
func (g *GrantEngine) grant(ctx context.Context, op, notFound string, pred achievements.Predicate,
	m achievements.Mutation, logArgs ...any) (*models.Achievement, error) {

	ctx, cancel := g.st.call(ctx)
	defer cancel()

	a, err := g.st.repo.FindOneAndUpdate(ctx, achievements.ByPredicate(pred), m)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			g.st.logger.Error(ctx, notFound, logArgs...)
			return nil, fmt.Errorf("%w: %s", common.ErrorNotFound, notFound)
		}
		return nil, g.st.fail(ctx, op, err, logArgs...)
	}
	return a, nil
}

// AddUser set-adds userID to the active achievement achievementID. Missing
// arguments are a logged no-op returning (nil, nil).
func (g *GrantEngine) AddUser(ctx context.Context, achievementID, userID string) (*models.Achievement, error) {
	if achievementID == "" {
		return nil, errNoSelector("achievement id")
	}
	if userID == "" {
		g.st.logger.Warn(ctx, "missing arguments on addUser", "achievement", achievementID)
		return nil, nil
	}
	return g.AddMultiUsers(ctx, achievementID, []string{userID})
}

// AddMultiUsers set-adds userIDs to the active achievement achievementID.
func (g *GrantEngine) AddMultiUsers(ctx context.Context, achievementID string, userIDs []string) (*models.Achievement, error) {
	if achievementID == "" {
		return nil, errNoSelector("achievement id")
	}
	if len(userIDs) == 0 {
		g.st.logger.Warn(ctx, "tried to add multiple users to achievement but no users were given", "achievement", achievementID)
		return nil, nil
	}

	now := g.st.now()
	return g.grant(ctx, "adding users to achievement",
		"error trying to add user to not valid achievement",
		achievements.Predicate{ID: achievementID, ActiveAt: &now},
		achievements.Mutation{AddToSet: userIDs, Updated: now},
		"achievement", achievementID, "users", len(userIDs))
}

// AddMultiUsersBySession set-adds userIDs to the active achievement of
// sessionID. Privileged callers may add anyone. Self-service callers may
// only add themselves and must present the session's current code.
func (g *GrantEngine) AddMultiUsersBySession(ctx context.Context, sessionID string, userIDs []string,
	creds auth.Credentials, code string) (*models.Achievement, error) {

	if sessionID == "" {
		return nil, errNoSelector("session id")
	}
	if len(userIDs) == 0 {
		g.st.logger.Warn(ctx, "tried to add multiple users to achievement but no users were given", "session", sessionID)
		return nil, nil
	}

	now := g.st.now()
	pred := achievements.Predicate{Session: sessionID, ActiveAt: &now}
	m := achievements.Mutation{AddToSet: userIDs, Updated: now}

	if !creds.SelfService() {
		return g.grant(ctx, "adding users to achievement",
			"error trying to add multiple users to not valid achievement in session",
			pred, m, "session", sessionID, "users", len(userIDs))
	}

	if len(userIDs) != 1 || userIDs[0] != creds.UserID {
		return nil, fmt.Errorf("%w: invalid payload for self sign", common.ErrorBadRequest)
	}

	pred.Code = &achievements.CodeMatch{Code: code, At: now}

	a, err := g.grant(ctx, "adding user to achievement", errSelfSignNotFound.Error(),
		pred, m, "session", sessionID, "user", creds.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, errSelfSignNotFound
	}
	return a, err
}

// AddUserToStandAchievement set-adds userID to the active stand achievement
// of companyID.
func (g *GrantEngine) AddUserToStandAchievement(ctx context.Context, companyID, userID string) (*models.Achievement, error) {
	if companyID == "" {
		return nil, errNoSelector("company id")
	}
	if userID == "" {
		g.st.logger.Warn(ctx, "tried to add user to company achievement but no user was given", "company", companyID)
		return nil, nil
	}

	now := g.st.now()
	return g.grant(ctx, "adding user to stand achievement",
		"error trying to add user to not valid stand achievement",
		achievements.Predicate{Kind: models.KindStand, Company: companyID, ActiveAt: &now},
		achievements.Mutation{AddToSet: []string{userID}, Updated: now},
		"company", companyID, "user", userID)
}

// AddUserToSpeedDateAchievement appends userID to the active speed-date
// achievement of companyID. Repeated calls add repeated entries.
func (g *GrantEngine) AddUserToSpeedDateAchievement(ctx context.Context, companyID, userID string) (*models.Achievement, error) {
	if companyID == "" {
		return nil, errNoSelector("company id")
	}
	if userID == "" {
		g.st.logger.Warn(ctx, "tried to add user to company achievement but no user was given", "company", companyID)
		return nil, nil
	}

	now := g.st.now()
	return g.grant(ctx, "adding user to speed date achievement",
		"error trying to add user to not valid speed date achievement",
		achievements.Predicate{Kind: models.KindSpeedDate, Company: companyID, ActiveAt: &now},
		achievements.Mutation{Push: []string{userID}, Updated: now},
		"company", companyID, "user", userID)
}

// AddCV set-adds userID to the active cv achievement.
func (g *GrantEngine) AddCV(ctx context.Context, userID string) (*models.Achievement, error) {
	if userID == "" {
		g.st.logger.Warn(ctx, "tried to add user to cv achievement but no user was given")
		return nil, nil
	}

	now := g.st.now()
	return g.grant(ctx, "adding user to cv achievement",
		"error trying to add user to cv achievement",
		achievements.Predicate{Kind: models.KindCV, ActiveAt: &now},
		achievements.Mutation{AddToSet: []string{userID}, Updated: now},
		"user", userID)
}

// RemoveCV pulls userID from the active cv achievement.
func (g *GrantEngine) RemoveCV(ctx context.Context, userID string) (*models.Achievement, error) {
	if userID == "" {
		g.st.logger.Warn(ctx, "tried to remove user from cv achievement but no user was given")
		return nil, nil
	}

	now := g.st.now()
	return g.grant(ctx, "removing user from cv achievement",
		"error trying to remove user from cv achievement",
		achievements.Predicate{Kind: models.KindCV, ActiveAt: &now},
		achievements.Mutation{Pull: userID, Updated: now},
		"user", userID)
}
