package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/auth"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
	"github.com/dmitrijs2005/achievements/internal/timex"
)

// ListQuery carries the raw list parameters of a caller: comma separated
// fields and sort keys ("-value,name") plus paging.
type ListQuery struct {
	Fields string
	Sort   string
	Skip   int64
	Limit  int64
}

// Create stores a new achievement. The id defaults to the slug of the name,
// an empty kind is stored as "other" and stand/speed-date achievements get
// their company from ids shaped like "stand-<company>-<suffix>".
func (s *AchievementService) Create(ctx context.Context, in *models.Achievement) (*models.Achievement, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: no achievement given", common.ErrorBadRequest)
	}

	a := in.Clone()
	if a.Kind == "" {
		a.Kind = models.KindOther
	}
	if a.ID == "" && a.Name != "" {
		a.ID = models.Slug(a.Name)
	}
	if a.Company == "" && (a.Kind == models.KindStand || a.Kind == models.KindSpeedDate) {
		a.Company = models.CompanyFromID(a.Kind, a.ID)
	}
	now := s.st.now()
	a.Created, a.Updated = now, now

	if err := a.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.st.call(ctx)
	defer cancel()

	created, err := s.st.repo.Create(ctx, a)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("%w: achievement %q is a duplicate", common.ErrorConflict, a.ID)
		}
		return nil, s.st.fail(ctx, "creating achievement", err, "achievement", a.ID)
	}
	return created, nil
}

// Update patches the first achievement matching f and returns it as stored.
func (s *AchievementService) Update(ctx context.Context, f achievements.Filter, patch achievements.Patch) (*models.Achievement, error) {
	m := achievements.Mutation{Set: &patch, Updated: s.st.now()}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.st.call(ctx)
	defer cancel()

	a, err := s.st.repo.FindOneAndUpdate(ctx, f, m)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.st.logger.Error(ctx, "error updating achievement", "filter", f.String(), "err", err)
			return nil, fmt.Errorf("%w: achievement not found", common.ErrorNotFound)
		}
		return nil, s.st.fail(ctx, "updating achievement", err, "filter", f.String())
	}
	return a, nil
}

// UpdateMulti patches every achievement matching f and returns how many matched.
func (s *AchievementService) UpdateMulti(ctx context.Context, f achievements.Filter, patch achievements.Patch) (int64, error) {
	m := achievements.Mutation{Set: &patch, Updated: s.st.now()}
	if err := m.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := s.st.call(ctx)
	defer cancel()

	n, err := s.st.repo.UpdateMany(ctx, f, m)
	if err != nil {
		return 0, s.st.fail(ctx, "updating achievements", err, "filter", f.String())
	}
	if n == 0 {
		s.st.logger.Warn(ctx, "could not find achievements", "filter", f.String())
	}
	return n, nil
}

// Get returns the first achievement matching f.
func (s *AchievementService) Get(ctx context.Context, f achievements.Filter) (*models.Achievement, error) {
	ctx, cancel := s.st.call(ctx)
	defer cancel()

	a, err := s.st.repo.FindOne(ctx, f)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.st.logger.Error(ctx, "achievement not found", "filter", f.String())
			return nil, fmt.Errorf("%w: achievement not found", common.ErrorNotFound)
		}
		return nil, s.st.fail(ctx, "getting achievement", err, "filter", f.String())
	}
	return a, nil
}

// GetByUser returns the currently active achievements whose roster contains userID.
func (s *AchievementService) GetByUser(ctx context.Context, userID string) ([]*models.Achievement, error) {
	now := s.st.now()
	return s.find(ctx, "getting achievements",
		achievements.ByPredicate(achievements.Predicate{User: userID, ActiveAt: &now}), achievements.ListOptions{})
}

// RemoveAllFromUser pulls userID from every roster and returns how many
// achievements contained it.
func (s *AchievementService) RemoveAllFromUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		s.st.logger.Warn(ctx, "tried to remove user from achievements but no user was given")
		return 0, nil
	}

	f := achievements.ByPredicate(achievements.Predicate{User: userID})

	ctx, cancel := s.st.call(ctx)
	defer cancel()

	n, err := s.st.repo.UpdateMany(ctx, f, achievements.Mutation{Pull: userID, Updated: s.st.now()})
	if err != nil {
		return 0, s.st.fail(ctx, "removing user from multiple achievements", err, "user", userID)
	}
	return n, nil
}

// List returns every achievement shaped by q.
func (s *AchievementService) List(ctx context.Context, q ListQuery) ([]*models.Achievement, error) {
	fields, err := achievements.ParseFields(q.Fields)
	if err != nil {
		return nil, err
	}
	sort, err := achievements.ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}
	if q.Skip < 0 || q.Limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must not be negative", common.ErrorBadRequest)
	}

	return s.find(ctx, "getting all achievements", achievements.All(), achievements.ListOptions{
		Fields: fields,
		Skip:   q.Skip,
		Limit:  q.Limit,
		Sort:   sort,
	})
}

// Remove deletes the achievement id and returns it.
func (s *AchievementService) Remove(ctx context.Context, id string) (*models.Achievement, error) {
	if id == "" {
		return nil, errNoSelector("achievement id")
	}

	ctx, cancel := s.st.call(ctx)
	defer cancel()

	a, err := s.st.repo.FindOneAndRemove(ctx, achievements.ByID(id))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.st.logger.Error(ctx, "error deleting achievement", "achievement", id, "err", err)
			return nil, fmt.Errorf("%w: achievement not found", common.ErrorNotFound)
		}
		return nil, s.st.fail(ctx, "deleting achievement", err, "achievement", id)
	}
	return a, nil
}

// GetActiveAchievements returns the achievements active at date. An empty
// date means now.
func (s *AchievementService) GetActiveAchievements(ctx context.Context, date string) ([]*models.Achievement, error) {
	at, err := s.queryTime(ctx, "date", date)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, "getting active achievements on a given date",
		achievements.ByPredicate(achievements.Predicate{ActiveAt: &at}), achievements.ListOptions{})
}

// GetActiveAchievementsCode returns the achievements whose whole validity
// lies inside [start, end]. Empty bounds mean now. An inverted range is
// logged and still queried, which matches nothing.
func (s *AchievementService) GetActiveAchievementsCode(ctx context.Context, start, end string) ([]*models.Achievement, error) {
	from, err := s.queryTime(ctx, "start", start)
	if err != nil {
		return nil, err
	}
	to, err := s.queryTime(ctx, "end", end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		s.st.logger.Error(ctx, "end date is before start date", "start", from, "end", to)
	}

	return s.find(ctx, "getting active achievements in a given range",
		achievements.ByPredicate(achievements.Predicate{ContainedIn: &achievements.Range{Start: from, End: to}}),
		achievements.ListOptions{})
}

// GenerateCodeSession issues a new redemption code for the session's achievement.
func (s *AchievementService) GenerateCodeSession(ctx context.Context, sessionID string, expiration time.Time) (*models.Achievement, error) {
	return s.codes.Issue(ctx, sessionID, expiration)
}

func (s *AchievementService) AddUser(ctx context.Context, achievementID, userID string) (*models.Achievement, error) {
	return s.grants.AddUser(ctx, achievementID, userID)
}

func (s *AchievementService) AddMultiUsers(ctx context.Context, achievementID string, userIDs []string) (*models.Achievement, error) {
	return s.grants.AddMultiUsers(ctx, achievementID, userIDs)
}

func (s *AchievementService) AddMultiUsersBySession(ctx context.Context, sessionID string, userIDs []string,
	creds auth.Credentials, code string) (*models.Achievement, error) {
	return s.grants.AddMultiUsersBySession(ctx, sessionID, userIDs, creds, code)
}

func (s *AchievementService) AddUserToStandAchievement(ctx context.Context, companyID, userID string) (*models.Achievement, error) {
	return s.grants.AddUserToStandAchievement(ctx, companyID, userID)
}

func (s *AchievementService) AddUserToSpeedDateAchievement(ctx context.Context, companyID, userID string) (*models.Achievement, error) {
	return s.grants.AddUserToSpeedDateAchievement(ctx, companyID, userID)
}

func (s *AchievementService) AddCV(ctx context.Context, userID string) (*models.Achievement, error) {
	return s.grants.AddCV(ctx, userID)
}

func (s *AchievementService) RemoveCV(ctx context.Context, userID string) (*models.Achievement, error) {
	return s.grants.RemoveCV(ctx, userID)
}

func (s *AchievementService) find(ctx context.Context, op string, f achievements.Filter,
	opts achievements.ListOptions) ([]*models.Achievement, error) {

	ctx, cancel := s.st.call(ctx)
	defer cancel()

	list, err := s.st.repo.Find(ctx, f, opts)
	if err != nil {
		return nil, s.st.fail(ctx, op, err, "filter", f.String())
	}
	return list, nil
}

func (s *AchievementService) queryTime(ctx context.Context, name, value string) (time.Time, error) {
	if value == "" {
		return s.st.now(), nil
	}
	t, err := timex.ParseTime(value)
	if err != nil {
		s.st.logger.Error(ctx, "invalid "+name+" date given on query to get active achievements", "query", value)
		return time.Time{}, fmt.Errorf("%w: invalid %s date given in query", common.ErrorBadRequest, name)
	}
	return t, nil
}
