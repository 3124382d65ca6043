package achievements

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
)

// InMemoryRepository keeps achievements in a map guarded by one mutex, which
// makes every call atomic. Returned documents are copies.
type InMemoryRepository struct {
	mu    sync.Mutex
	items map[string]*models.Achievement
}

// NewInMemoryRepository returns an empty store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]*models.Achievement)}
}

func (r *InMemoryRepository) Create(ctx context.Context, a *models.Achievement) (*models.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[a.ID]; ok {
		return nil, fmt.Errorf("%w: achievement %q already exists", common.ErrorConflict, a.ID)
	}
	if err := r.checkSession(a.ID, a.Session); err != nil {
		return nil, err
	}
	if err := checkStored(a); err != nil {
		return nil, err
	}

	stored := a.Clone()
	r.items[a.ID] = stored
	return stored.Clone(), nil
}

func (r *InMemoryRepository) FindOne(ctx context.Context, f Filter) (*models.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.first(f)
	if a == nil {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *InMemoryRepository) Find(ctx context.Context, f Filter, opts ListOptions) ([]*models.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	matched := r.matching(f)
	out := make([]*models.Achievement, 0, len(matched))
	for _, a := range matched {
		out = append(out, a.Clone())
	}
	r.mu.Unlock()

	sortAchievements(out, opts.Sort)
	out = window(out, opts.Skip, opts.Limit)
	for i, a := range out {
		out[i] = Project(a, opts.Fields)
	}
	return out, nil
}

func (r *InMemoryRepository) FindOneAndUpdate(ctx context.Context, f Filter, m Mutation) (*models.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.first(f)
	if a == nil {
		return nil, common.ErrorNotFound
	}
	updated, err := r.apply(a, m)
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

func (r *InMemoryRepository) UpdateMany(ctx context.Context, f Filter, m Mutation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.matching(f)
	next := make([]*models.Achievement, 0, len(matched))
	for _, a := range matched {
		c := a.Clone()
		m.Apply(c)
		if err := checkStored(c); err != nil {
			return 0, err
		}
		next = append(next, c)
	}
	if err := r.checkSessions(next); err != nil {
		return 0, err
	}
	for _, c := range next {
		r.items[c.ID] = c
	}
	return int64(len(next)), nil
}

func (r *InMemoryRepository) FindOneAndRemove(ctx context.Context, f Filter) (*models.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.first(f)
	if a == nil {
		return nil, common.ErrorNotFound
	}
	delete(r.items, a.ID)
	return a, nil
}

// first returns the matching achievement with the lowest id. Callers hold mu.
func (r *InMemoryRepository) first(f Filter) *models.Achievement {
	matched := r.matching(f)
	if len(matched) == 0 {
		return nil
	}
	return matched[0]
}

// matching returns stored documents sorted by id. Callers hold mu.
func (r *InMemoryRepository) matching(f Filter) []*models.Achievement {
	if id, exact := f.ExactID(); exact || id != "" {
		a, ok := r.items[id]
		if !ok || !f.Matches(a) {
			return nil
		}
		return []*models.Achievement{a}
	}

	var out []*models.Achievement
	for _, a := range r.items {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b *models.Achievement) int { return compareField(a, b, "id") })
	return out
}

func (r *InMemoryRepository) apply(a *models.Achievement, m Mutation) (*models.Achievement, error) {
	c := a.Clone()
	m.Apply(c)
	if err := checkStored(c); err != nil {
		return nil, err
	}
	if err := r.checkSession(c.ID, c.Session); err != nil {
		return nil, err
	}
	r.items[c.ID] = c
	return c, nil
}

func (r *InMemoryRepository) checkSession(id, session string) error {
	if session == "" {
		return nil
	}
	for _, other := range r.items {
		if other.ID != id && other.Session == session {
			return fmt.Errorf("%w: session %q is already used by %q", common.ErrorConflict, session, other.ID)
		}
	}
	return nil
}

// checkSessions validates a whole batch against the stored documents it does
// not replace and against itself. Callers hold mu.
func (r *InMemoryRepository) checkSessions(batch []*models.Achievement) error {
	owners := make(map[string]string, len(r.items))
	replaced := make(map[string]bool, len(batch))
	for _, c := range batch {
		replaced[c.ID] = true
	}
	for _, a := range r.items {
		if a.Session != "" && !replaced[a.ID] {
			owners[a.Session] = a.ID
		}
	}
	for _, c := range batch {
		if c.Session == "" {
			continue
		}
		if owner, ok := owners[c.Session]; ok {
			return fmt.Errorf("%w: session %q is already used by %q", common.ErrorConflict, c.Session, owner)
		}
		owners[c.Session] = c.ID
	}
	return nil
}

// checkStored mirrors the table constraints of the SQL store.
func checkStored(a *models.Achievement) error {
	if a.Validity.From.After(a.Validity.To) {
		return fmt.Errorf("%w: validity.from is after validity.to", common.ErrorValidation)
	}
	if a.Code != nil && !a.Code.Expiration.After(a.Code.Created) {
		return fmt.Errorf("%w: code expiration must be after creation", common.ErrorValidation)
	}
	return nil
}
