package achievements

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, items ...*models.Achievement) *InMemoryRepository {
	t.Helper()
	r := NewInMemoryRepository()
	for _, a := range items {
		_, err := r.Create(context.Background(), a)
		require.NoError(t, err)
	}
	return r
}

func active(id string) *models.Achievement {
	return &models.Achievement{ID: id, Name: id, Kind: models.KindOther, Validity: models.Validity{From: from, To: to}}
}

func TestInMemory_CreateConflicts(t *testing.T) {
	a := active("a1")
	a.Session = "s1"
	r := seeded(t, a)

	_, err := r.Create(context.Background(), active("a1"))
	assert.ErrorIs(t, err, common.ErrorConflict)

	b := active("b1")
	b.Session = "s1"
	_, err = r.Create(context.Background(), b)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestInMemory_ReturnsCopies(t *testing.T) {
	r := seeded(t, active("a1"))

	got, err := r.FindOne(context.Background(), ByID("a1"))
	require.NoError(t, err)
	got.Users = append(got.Users, "intruder")
	got.Name = "changed"

	again, err := r.FindOne(context.Background(), ByID("a1"))
	require.NoError(t, err)
	assert.Empty(t, again.Users)
	assert.Equal(t, "a1", again.Name)
}

func TestInMemory_FindOneAndUpdate_SetAddIsIdempotent(t *testing.T) {
	r := seeded(t, active("a1"))
	ctx := context.Background()

	for range 3 {
		_, err := r.FindOneAndUpdate(ctx, ByPredicate(Predicate{ID: "a1", ActiveAt: &now}), Mutation{AddToSet: []string{"u1", "u2", "u1"}})
		require.NoError(t, err)
	}

	got, err := r.FindOne(ctx, ByID("a1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.Users)
}

func TestInMemory_FindOneAndUpdate_OutsideWindowIsNotFound(t *testing.T) {
	r := seeded(t, active("a1"))
	later := to.Add(time.Second)

	_, err := r.FindOneAndUpdate(context.Background(), ByPredicate(Predicate{ID: "a1", ActiveAt: &later}), Mutation{AddToSet: []string{"u1"}})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInMemory_FindOneAndUpdate_RejectsInvertedValidity(t *testing.T) {
	r := seeded(t, active("a1"))
	v := models.Validity{From: to, To: from}

	_, err := r.FindOneAndUpdate(context.Background(), ByID("a1"), Mutation{Set: &Patch{Validity: &v}})
	assert.ErrorIs(t, err, common.ErrorValidation)

	got, _ := r.FindOne(context.Background(), ByID("a1"))
	assert.True(t, got.Validity.From.Equal(from))
}

func TestInMemory_ConcurrentSetAdds(t *testing.T) {
	r := seeded(t, active("a1"))
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.FindOneAndUpdate(ctx, ByID("a1"), Mutation{AddToSet: []string{fmt.Sprintf("u%d", i), "shared"}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := r.FindOne(ctx, ByID("a1"))
	require.NoError(t, err)
	assert.Len(t, got.Users, n+1)
}

func TestInMemory_ConcurrentPushes(t *testing.T) {
	sd := active("speedDate-acme-1")
	sd.Kind = models.KindSpeedDate
	sd.Company = "acme"
	r := seeded(t, sd)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.FindOneAndUpdate(ctx,
				ByPredicate(Predicate{Kind: models.KindSpeedDate, Company: "acme", ActiveAt: &now}),
				Mutation{Push: []string{"u1"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := r.FindOne(ctx, ByID("speedDate-acme-1"))
	require.NoError(t, err)
	assert.Len(t, got.Users, n)
}

func TestInMemory_FindOneAndUpdate_PicksLowestID(t *testing.T) {
	r := seeded(t, active("b"), active("a"), active("c"))

	got, err := r.FindOneAndUpdate(context.Background(), ByPredicate(Predicate{Kind: models.KindOther}), Mutation{AddToSet: []string{"u1"}})
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestInMemory_Find_SortSkipLimitProject(t *testing.T) {
	a, b, c := active("a"), active("b"), active("c")
	a.Value, b.Value, c.Value = 10, 30, 20
	r := seeded(t, a, b, c)

	got, err := r.Find(context.Background(), All(), ListOptions{
		Sort:   []SortField{{Field: "value", Desc: true}},
		Skip:   1,
		Limit:  1,
		Fields: []string{"value"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, 20.0, got[0].Value)
	assert.Empty(t, got[0].Name)
}

func TestInMemory_Find_NoMatchIsEmpty(t *testing.T) {
	r := seeded(t, active("a"))

	got, err := r.Find(context.Background(), ByPredicate(Predicate{User: "nobody"}), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInMemory_UpdateMany_Pull(t *testing.T) {
	a, b, c := active("a"), active("b"), active("c")
	a.Users = []string{"u1", "u2"}
	b.Users = []string{"u1"}
	c.Users = []string{"u2"}
	r := seeded(t, a, b, c)
	ctx := context.Background()

	n, err := r.UpdateMany(ctx, ByPredicate(Predicate{User: "u1"}), Mutation{Pull: "u1", Updated: now})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := r.Find(ctx, ByPredicate(Predicate{User: "u1"}), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, left)

	got, _ := r.FindOne(ctx, ByID("a"))
	assert.Equal(t, []string{"u2"}, got.Users)
	assert.True(t, got.Updated.Equal(now))
}

func TestInMemory_UpdateMany_AllOrNothing(t *testing.T) {
	r := seeded(t, active("a"), active("b"))
	session := "same"

	_, err := r.UpdateMany(context.Background(), All(), Mutation{Set: &Patch{Session: &session}})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestInMemory_FindOneAndRemove(t *testing.T) {
	r := seeded(t, active("a"))
	ctx := context.Background()

	got, err := r.FindOneAndRemove(ctx, ByID("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = r.FindOneAndRemove(ctx, ByID("a"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInMemory_CanceledContext(t *testing.T) {
	r := seeded(t, active("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FindOne(ctx, ByID("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemory_EmptyIDMatchesNothing(t *testing.T) {
	r := seeded(t, active("a1"), active("a2"))
	ctx := context.Background()

	_, err := r.FindOne(ctx, ByID(""))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = r.FindOneAndUpdate(ctx, ByID(""), Mutation{AddToSet: []string{"u1"}, Updated: now})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	n, err := r.UpdateMany(ctx, ByID(""), Mutation{Pull: "u1", Updated: now})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.FindOneAndRemove(ctx, ByID(""))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err := r.Find(ctx, All(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
