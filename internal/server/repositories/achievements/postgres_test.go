package achievements

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	now  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

var resultColumns = []string{
	"id", "name", "event", "kind", "session", "company", "value", "img", "description", "category", "instructions",
	"validity_from", "validity_to", "users", "code", "code_created", "code_expiration", "created", "updated",
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func achievementRows(users string) *sqlmock.Rows {
	return sqlmock.NewRows(resultColumns).AddRow(
		"session-s1", "Went to \"Talk\"", "ev24", "Keynote", "s1", "", 10.0, "", "", "", "",
		from, to, users, nil, nil, nil, from, now,
	)
}

func TestPostgres_Create_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO achievements \(id, name, .*\) VALUES \(\$1, .* \$14::jsonb, .*\$19\)`).
		WithArgs("a1", "A", "", "Keynote", nil, "", 10.0, "", "", "", "",
			from, to, `[]`, nil, nil, nil, from, from).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), &models.Achievement{
		ID: "a1", Name: "A", Kind: models.KindKeynote, Value: 10,
		Validity: models.Validity{From: from, To: to}, Created: from, Updated: from,
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, []string{}, got.Users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_UniqueViolationIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO achievements`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "achievements_pkey"})

	_, err := repo.Create(context.Background(), &models.Achievement{ID: "a1", Name: "A", Kind: models.KindOther})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestPostgres_Create_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO achievements`).WillReturnError(errors.New("db is down"))

	_, err := repo.Create(context.Background(), &models.Achievement{ID: "a1", Name: "A", Kind: models.KindOther})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db is down`, err.Error())
	assert.NotErrorIs(t, err, common.ErrorConflict)
}

func TestPostgres_FindOne_ByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, .* users::text, .* FROM achievements WHERE id = \$1 ORDER BY id LIMIT 1`).
		WithArgs("session-s1").
		WillReturnRows(achievementRows(`["u1","u2"]`))

	got, err := repo.FindOne(context.Background(), ByID("session-s1"))
	require.NoError(t, err)
	assert.Equal(t, models.KindKeynote, got.Kind)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, []string{"u1", "u2"}, got.Users)
	assert.Nil(t, got.Code)
	assert.True(t, got.Validity.From.Equal(from))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOne_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM achievements WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindOne(context.Background(), ByID("missing"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_FindOne_ScansCode(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(resultColumns).AddRow(
		"session-s1", "N", "", "Workshop", nil, "", 20.0, "", "", "", "",
		from, to, `[]`, "ABCdef123456", from, to, from, from,
	)
	mock.ExpectQuery(`SELECT .* FROM achievements WHERE session = \$1`).
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := repo.FindOne(context.Background(), ByPredicate(Predicate{Session: "s1"}))
	require.NoError(t, err)
	require.NotNil(t, got.Code)
	assert.Equal(t, "ABCdef123456", got.Code.Code)
	assert.Equal(t, "", got.Session)
	assert.Equal(t, []string{}, got.Users)
}

func TestPostgres_Find_PredicateSortAndPaging(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.QuoteMeta(`WHERE kind = $1 AND users @> jsonb_build_array($2::text) AND validity_from <= $3 AND validity_to >= $3 ORDER BY value DESC, name, id LIMIT $4 OFFSET $5`)
	mock.ExpectQuery(`SELECT .* FROM achievements ` + q).
		WithArgs("Keynote", "u1", now, int64(10), int64(5)).
		WillReturnRows(achievementRows(`["u1"]`))

	got, err := repo.Find(context.Background(),
		ByPredicate(Predicate{Kind: models.KindKeynote, User: "u1", ActiveAt: &now}),
		ListOptions{Skip: 5, Limit: 10, Sort: []SortField{{Field: "value", Desc: true}, {Field: "name"}}, Fields: []string{"name"}},
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "session-s1", got[0].ID)
	assert.Equal(t, "Went to \"Talk\"", got[0].Name)
	assert.Zero(t, got[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Find_EmptyIsNotError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM achievements WHERE TRUE ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(resultColumns))

	got, err := repo.Find(context.Background(), All(), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPostgres_Find_ContainedIn(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.QuoteMeta(`WHERE validity_from >= $1 AND validity_to <= $2 ORDER BY id`)
	mock.ExpectQuery(`SELECT .* FROM achievements ` + q).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(resultColumns))

	_, err := repo.Find(context.Background(), ByPredicate(Predicate{ContainedIn: &Range{Start: from, End: to}}), ListOptions{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOneAndUpdate_AddToSetLocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE achievements SET updated = \$1, users = users \|\| COALESCE\(.*jsonb_array_elements_text\(\$2::jsonb\).* WHERE id = \(SELECT id FROM achievements WHERE session = \$3 AND validity_from <= \$4 AND validity_to >= \$4 ORDER BY id LIMIT 1 FOR UPDATE\) RETURNING id, `).
		WithArgs(now, `["u1","u2"]`, "s1", now).
		WillReturnRows(achievementRows(`["u1","u2"]`))

	got, err := repo.FindOneAndUpdate(context.Background(),
		ByPredicate(Predicate{Session: "s1", ActiveAt: &now}),
		Mutation{AddToSet: []string{"u1", "u2"}, Updated: now},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.Users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOneAndUpdate_PushAndCode(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE achievements SET updated = \$1, users = users \|\| \$2::jsonb WHERE id = \(SELECT id FROM achievements WHERE kind = \$3 AND company = \$4`).
		WithArgs(now, `["u1"]`, "speedDate", "acme", now).
		WillReturnRows(achievementRows(`["u1","u1"]`))

	_, err := repo.FindOneAndUpdate(context.Background(),
		ByPredicate(Predicate{Kind: models.KindSpeedDate, Company: "acme", ActiveAt: &now}),
		Mutation{Push: []string{"u1"}, Updated: now},
	)
	require.NoError(t, err)

	code := &models.Code{Code: "c0de", Created: now, Expiration: to}
	mock.ExpectQuery(`UPDATE achievements SET updated = \$1, code = \$2, code_created = \$3, code_expiration = \$4 WHERE id = \(SELECT id FROM achievements WHERE session = \$5 AND validity_to >= \$6`).
		WithArgs(now, "c0de", now, to, "s1", now).
		WillReturnRows(achievementRows(`[]`))

	_, err = repo.FindOneAndUpdate(context.Background(),
		ByPredicate(Predicate{Session: "s1", NotExpiredAt: &now}),
		Mutation{SetCode: code, Updated: now},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOneAndUpdate_CodePredicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`code = \$4 AND code_created <= \$5 AND code_expiration >= \$5`).
		WithArgs(now, `["u1"]`, "s1", "c0de", now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindOneAndUpdate(context.Background(),
		ByPredicate(Predicate{Session: "s1", Code: &CodeMatch{Code: "c0de", At: now}}),
		Mutation{AddToSet: []string{"u1"}, Updated: now},
	)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_FindOneAndUpdate_CheckViolationIsValidation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE achievements SET updated = \$1, validity_from = \$2, validity_to = \$3`).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "achievements_validity_check"})

	v := models.Validity{From: to, To: from}
	_, err := repo.FindOneAndUpdate(context.Background(), ByID("a1"), Mutation{Set: &Patch{Validity: &v}, Updated: now})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestPostgres_UpdateMany_PullReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE achievements SET updated = \$1, users = COALESCE\(\( SELECT jsonb_agg\(e.v ORDER BY e.ord\) .* to_jsonb\(\$2::text\)\), '\[\]'::jsonb\) WHERE users @> jsonb_build_array\(\$3::text\)`).
		WithArgs(now, "u1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.UpdateMany(context.Background(), ByPredicate(Predicate{User: "u1"}), Mutation{Pull: "u1", Updated: now})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateMany_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE achievements SET`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	_, err := repo.UpdateMany(context.Background(), All(), Mutation{Updated: now})
	require.Error(t, err)
	assert.Regexp(t, `rows affected error: .*rows-err`, err.Error())
}

func TestPostgres_FindOneAndRemove(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM achievements WHERE id = \(SELECT id FROM achievements WHERE id = \$1 ORDER BY id LIMIT 1 FOR UPDATE\) RETURNING id,`).
		WithArgs("session-s1").
		WillReturnRows(achievementRows(`[]`))

	got, err := repo.FindOneAndRemove(context.Background(), ByID("session-s1"))
	require.NoError(t, err)
	assert.Equal(t, "session-s1", got.ID)

	mock.ExpectQuery(`DELETE FROM achievements`).WithArgs("gone").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindOneAndRemove(context.Background(), ByID("gone"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_EmptyIDStillComparesID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM achievements WHERE id = \(SELECT id FROM achievements WHERE id = \$1 ORDER BY id LIMIT 1 FOR UPDATE\)`).
		WithArgs("").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindOneAndRemove(context.Background(), ByID(""))
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
