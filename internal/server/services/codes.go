package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
)

// CodeLength is the number of symbols in a redemption code.
const CodeLength = 12

// generateCode is a seam for testing code generation.
var generateCode = func() string {
	return common.RandomString(CodeLength, common.Alphanumeric)
}

// CodeIssuer attaches short-lived redemption codes to session achievements.
type CodeIssuer struct {
	st *store
}

// Issue replaces the code of the not yet expired achievement of sessionID
// with a fresh one valid from now until expiration.
func (c *CodeIssuer) Issue(ctx context.Context, sessionID string, expiration time.Time) (*models.Achievement, error) {
	if sessionID == "" {
		return nil, errNoSelector("session id")
	}
	if expiration.IsZero() {
		c.st.logger.Error(ctx, "no duration was given", "session", sessionID)
		return nil, fmt.Errorf("%w: no duration given", common.ErrorValidation)
	}

	now := c.st.now()
	if !expiration.After(now) {
		c.st.logger.Error(ctx, "expiration date is in the past", "session", sessionID, "expiration", expiration)
		return nil, fmt.Errorf("%w: expiration is in the past", common.ErrorValidation)
	}

	code := &models.Code{Created: now, Expiration: expiration, Code: generateCode()}
	pred := achievements.Predicate{Session: sessionID, NotExpiredAt: &now}

	ctx, cancel := c.st.call(ctx)
	defer cancel()

	a, err := c.st.repo.FindOneAndUpdate(ctx, achievements.ByPredicate(pred),
		achievements.Mutation{SetCode: code, Updated: now})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.st.logger.Error(ctx, "error trying to add code to not valid achievement in session", "session", sessionID)
			return nil, fmt.Errorf("%w: no valid achievement for session %q", common.ErrorNotFound, sessionID)
		}
		return nil, c.st.fail(ctx, "adding code to achievement", err, "session", sessionID)
	}
	return a, nil
}
