package subjects

import (
	"context"
	"fmt"

	"rollcall/internal/common"
	"rollcall/internal/dbx"
)

// Repository persists subjects in Postgres.
type Repository struct {
	db dbx.DBTX
}

func NewRepository(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

const columns = `id, created_at, name, code, status, course, semester`

func scan(row interface{ Scan(...any) error }) (Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.CreatedAt, &s.Name, &s.Code, &s.Status, &s.Course, &s.Semester)
	return s, err
}

// List returns subjects ordered by name.
func (r *Repository) List(ctx context.Context, f Filter) ([]Subject, error) {
	var w dbx.Where
	if f.Course != "" {
		w.Eq("course", f.Course)
	}
	if f.Semester > 0 {
		w.Eq("semester", f.Semester)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM subjects`+w.SQL()+` ORDER BY name, id`, w.Args()...)
	if err != nil {
		return nil, dbx.Classify("list subjects", err)
	}
	defer rows.Close()

	res := []Subject{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, dbx.Classify("list subjects", err)
		}
		res = append(res, s)
	}
	return res, dbx.Classify("list subjects", rows.Err())
}

func (r *Repository) Get(ctx context.Context, id int64) (Subject, error) {
	s, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM subjects WHERE id = $1`, id))
	if err != nil {
		return Subject{}, dbx.Classify("get subject", err)
	}
	return s, nil
}

func (r *Repository) Insert(ctx context.Context, s Subject) (Subject, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO subjects (name, code, status, course, semester)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.Name, s.Code, s.Status, s.Course, s.Semester)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return Subject{}, dbx.Classify("insert subject", err)
	}
	return s, nil
}

// Update applies the non-nil fields of u.
func (r *Repository) Update(ctx context.Context, id int64, u Update) (Subject, error) {
	var set dbx.Set
	if u.Name != nil {
		set.Add("name", *u.Name)
	}
	if u.Code != nil {
		set.Add("code", *u.Code)
	}
	if u.Course != nil {
		set.Add("course", *u.Course)
	}
	if u.Semester != nil {
		set.Add("semester", *u.Semester)
	}
	if set.Empty() {
		return r.Get(ctx, id)
	}
	query := `UPDATE subjects SET ` + set.SQL() + ` WHERE id = ` + set.Bind(id) + ` RETURNING ` + columns
	s, err := scan(r.db.QueryRowContext(ctx, query, set.Args()...))
	if err != nil {
		return Subject{}, dbx.Classify("update subject", err)
	}
	return s, nil
}

func (r *Repository) SetStatus(ctx context.Context, id int64, status string) (Subject, error) {
	s, err := scan(r.db.QueryRowContext(ctx,
		`UPDATE subjects SET status = $1 WHERE id = $2 RETURNING `+columns, status, id))
	if err != nil {
		return Subject{}, dbx.Classify("set subject status", err)
	}
	return s, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return dbx.Classify("delete subject", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return dbx.Classify("delete subject", err)
	} else if n == 0 {
		return fmt.Errorf("delete subject: %w", common.ErrNotFound)
	}
	return nil
}
