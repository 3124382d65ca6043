package achievements

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/dbx"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

const selectColumns = `id, name, event, kind, session, company, value, img, description, category, instructions,
	validity_from, validity_to, users::text, code, code_created, code_expiration, created, updated`

// PostgresRepository stores achievements in the achievements table. The
// roster is a JSONB array so that set-add, append and pull run as single
// UPDATE statements.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Achievement) (*models.Achievement, error) {
	users, err := json.Marshal(nonNil(a.Users))
	if err != nil {
		return nil, fmt.Errorf("encode users: %w", err)
	}

	var code, codeCreated, codeExpiration any
	if a.Code != nil {
		code, codeCreated, codeExpiration = a.Code.Code, a.Code.Created, a.Code.Expiration
	}

	query := `INSERT INTO achievements (id, name, event, kind, session, company, value, img, description, category,
		instructions, validity_from, validity_to, users, code, code_created, code_expiration, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15, $16, $17, $18, $19)`

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Event, string(a.Kind), nullable(a.Session), a.Company, a.Value, a.Img, a.Description,
		a.Category, a.Instructions, a.Validity.From, a.Validity.To, string(users),
		code, codeCreated, codeExpiration, a.Created, a.Updated)
	if err != nil {
		return nil, mapPgError(err)
	}

	return a.Clone(), nil
}

func (r *PostgresRepository) FindOne(ctx context.Context, f Filter) (*models.Achievement, error) {
	b := &sqlBuilder{}
	query := `SELECT ` + selectColumns + ` FROM achievements WHERE ` + b.filter(f) + ` ORDER BY id LIMIT 1`

	a, err := scanAchievement(r.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Find(ctx context.Context, f Filter, opts ListOptions) ([]*models.Achievement, error) {
	b := &sqlBuilder{}
	query := `SELECT ` + selectColumns + ` FROM achievements WHERE ` + b.filter(f) + orderBy(opts.Sort)
	if opts.Limit > 0 {
		query += ` LIMIT ` + b.arg(opts.Limit)
	}
	if opts.Skip > 0 {
		query += ` OFFSET ` + b.arg(opts.Skip)
	}

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Achievement{}
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, Project(a, opts.Fields))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// FindOneAndUpdate locks the first matching row and updates it in the same
// statement, so concurrent grants on one achievement serialize on the row lock.
func (r *PostgresRepository) FindOneAndUpdate(ctx context.Context, f Filter, m Mutation) (*models.Achievement, error) {
	b := &sqlBuilder{}
	set := b.set(m)
	query := `UPDATE achievements SET ` + set +
		` WHERE id = (SELECT id FROM achievements WHERE ` + b.filter(f) + ` ORDER BY id LIMIT 1 FOR UPDATE)` +
		` RETURNING ` + selectColumns

	a, err := scanAchievement(r.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, mapPgError(err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateMany(ctx context.Context, f Filter, m Mutation) (int64, error) {
	b := &sqlBuilder{}
	set := b.set(m)
	query := `UPDATE achievements SET ` + set + ` WHERE ` + b.filter(f)

	res, err := r.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return 0, mapPgError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) FindOneAndRemove(ctx context.Context, f Filter) (*models.Achievement, error) {
	b := &sqlBuilder{}
	query := `DELETE FROM achievements WHERE id = (SELECT id FROM achievements WHERE ` + b.filter(f) +
		` ORDER BY id LIMIT 1 FOR UPDATE) RETURNING ` + selectColumns

	a, err := scanAchievement(r.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// sqlBuilder collects positional arguments while rendering SQL fragments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// filter renders f. A ByID filter always compares the id, even when empty.
func (b *sqlBuilder) filter(f Filter) string {
	if id, exact := f.ExactID(); exact {
		return "id = " + b.arg(id)
	}
	return b.where(f.Predicate())
}

func (b *sqlBuilder) where(p Predicate) string {
	var conds []string
	eq := func(col, v string) {
		if v != "" {
			conds = append(conds, col+" = "+b.arg(v))
		}
	}
	eq("id", p.ID)
	eq("session", p.Session)
	eq("kind", string(p.Kind))
	eq("company", p.Company)
	if p.User != "" {
		conds = append(conds, "users @> jsonb_build_array("+b.arg(p.User)+"::text)")
	}
	if p.ActiveAt != nil {
		t := b.arg(*p.ActiveAt)
		conds = append(conds, "validity_from <= "+t+" AND validity_to >= "+t)
	}
	if p.NotExpiredAt != nil {
		conds = append(conds, "validity_to >= "+b.arg(*p.NotExpiredAt))
	}
	if p.ContainedIn != nil {
		conds = append(conds, "validity_from >= "+b.arg(p.ContainedIn.Start)+" AND validity_to <= "+b.arg(p.ContainedIn.End))
	}
	if p.Code != nil {
		c, at := b.arg(p.Code.Code), b.arg(p.Code.At)
		conds = append(conds, "code = "+c+" AND code_created <= "+at+" AND code_expiration >= "+at)
	}
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func (b *sqlBuilder) set(m Mutation) string {
	updated := m.Updated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	sets := []string{"updated = " + b.arg(updated)}
	col := func(name string, v any) {
		sets = append(sets, name+" = "+b.arg(v))
	}

	if p := m.Set; p != nil {
		if p.Name != nil {
			col("name", *p.Name)
		}
		if p.Event != nil {
			col("event", *p.Event)
		}
		if p.Kind != nil {
			col("kind", string(*p.Kind))
		}
		if p.Session != nil {
			col("session", nullable(*p.Session))
		}
		if p.Company != nil {
			col("company", *p.Company)
		}
		if p.Value != nil {
			col("value", *p.Value)
		}
		if p.Img != nil {
			col("img", *p.Img)
		}
		if p.Description != nil {
			col("description", *p.Description)
		}
		if p.Category != nil {
			col("category", *p.Category)
		}
		if p.Instructions != nil {
			col("instructions", *p.Instructions)
		}
		if p.Validity != nil {
			col("validity_from", p.Validity.From)
			col("validity_to", p.Validity.To)
		}
	}

	switch {
	case len(m.AddToSet) > 0:
		sets = append(sets, `users = users || COALESCE((
			SELECT jsonb_agg(n.u ORDER BY n.ord) FROM (
				SELECT t.u, MIN(t.ord) AS ord
				FROM jsonb_array_elements_text(`+b.arg(jsonList(m.AddToSet))+`::jsonb) WITH ORDINALITY AS t(u, ord)
				WHERE NOT users @> jsonb_build_array(t.u)
				GROUP BY t.u
			) n), '[]'::jsonb)`)
	case len(m.Push) > 0:
		sets = append(sets, "users = users || "+b.arg(jsonList(m.Push))+"::jsonb")
	case m.Pull != "":
		sets = append(sets, `users = COALESCE((
			SELECT jsonb_agg(e.v ORDER BY e.ord)
			FROM jsonb_array_elements(users) WITH ORDINALITY AS e(v, ord)
			WHERE e.v <> to_jsonb(`+b.arg(m.Pull)+`::text)), '[]'::jsonb)`)
	}

	if m.SetCode != nil {
		col("code", m.SetCode.Code)
		col("code_created", m.SetCode.Created)
		col("code_expiration", m.SetCode.Expiration)
	}

	return strings.Join(sets, ", ")
}

func orderBy(sort []SortField) string {
	var parts []string
	for _, s := range sort {
		column, ok := sortColumns[s.Field]
		if !ok {
			continue
		}
		if s.Desc {
			column += " DESC"
		}
		parts = append(parts, column)
	}
	parts = append(parts, "id")
	return " ORDER BY " + strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAchievement(row rowScanner) (*models.Achievement, error) {
	var (
		a                           models.Achievement
		kind, users                 string
		session, code               sql.NullString
		codeCreated, codeExpiration sql.NullTime
	)
	if err := row.Scan(
		&a.ID, &a.Name, &a.Event, &kind, &session, &a.Company, &a.Value, &a.Img, &a.Description,
		&a.Category, &a.Instructions, &a.Validity.From, &a.Validity.To, &users,
		&code, &codeCreated, &codeExpiration, &a.Created, &a.Updated,
	); err != nil {
		return nil, err
	}

	a.Kind = models.Kind(kind)
	a.Session = session.String
	if err := json.Unmarshal([]byte(users), &a.Users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if a.Users == nil {
		a.Users = []string{}
	}
	if code.Valid {
		a.Code = &models.Code{Code: code.String, Created: codeCreated.Time, Expiration: codeExpiration.Time}
	}
	return &a, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrorConflict, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", common.ErrorValidation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(users []string) []string {
	if users == nil {
		return []string{}
	}
	return users
}

func jsonList(users []string) string {
	b, _ := json.Marshal(nonNil(users))
	return string(b)
}
