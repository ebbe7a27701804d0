package roster

import (
	"context"
	"encoding/json"
	"fmt"

	"rollcall/internal/common"
	"rollcall/internal/dbx"
)

// Repository persists students and teachers in Postgres.
type Repository struct {
	db dbx.DBTX
}

// NewRepository creates a repo.
func NewRepository(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, created_at, username, password_hash, course, semester, roll`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.CreatedAt, &s.Username, &s.PasswordHash, &s.Course, &s.Semester, &s.Roll)
	return s, err
}

// ListStudents returns students ordered by roll number.
func (r *Repository) ListStudents(ctx context.Context, f Filter) ([]Student, error) {
	var w dbx.Where
	if f.Course != "" {
		w.Eq("course", f.Course)
	}
	if f.Semester > 0 {
		w.Eq("semester", f.Semester)
	}
	return r.queryStudents(ctx, "list students",
		`SELECT `+studentColumns+` FROM students`+w.SQL()+` ORDER BY roll, id`, w.Args()...)
}

// FindStudents returns students with the given roll in a course, optionally narrowed by semester.
func (r *Repository) FindStudents(ctx context.Context, roll int, course string, semester int) ([]Student, error) {
	var w dbx.Where
	w.Eq("roll", roll)
	w.Eq("course", course)
	if semester > 0 {
		w.Eq("semester", semester)
	}
	return r.queryStudents(ctx, "find students",
		`SELECT `+studentColumns+` FROM students`+w.SQL()+` ORDER BY semester, id`, w.Args()...)
}

func (r *Repository) queryStudents(ctx context.Context, op, query string, args ...any) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Classify(op, err)
	}
	defer rows.Close()

	res := []Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, dbx.Classify(op, err)
		}
		res = append(res, s)
	}
	return res, dbx.Classify(op, rows.Err())
}

// GetStudent returns a single student by id.
func (r *Repository) GetStudent(ctx context.Context, id int64) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if err != nil {
		return Student{}, dbx.Classify("get student", err)
	}
	return s, nil
}

// InsertStudent writes a new student; PasswordHash must already be set.
func (r *Repository) InsertStudent(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (username, password_hash, course, semester, roll)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.Username, s.PasswordHash, s.Course, s.Semester, s.Roll)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return Student{}, dbx.Classify("insert student", err)
	}
	return s, nil
}

// UpdateStudent applies the non-nil fields of u. passwordHash replaces the stored hash when non-empty.
func (r *Repository) UpdateStudent(ctx context.Context, id int64, u StudentUpdate, passwordHash string) (Student, error) {
	var set dbx.Set
	if u.Username != nil {
		set.Add("username", *u.Username)
	}
	if passwordHash != "" {
		set.Add("password_hash", passwordHash)
	}
	if u.Course != nil {
		set.Add("course", *u.Course)
	}
	if u.Semester != nil {
		set.Add("semester", *u.Semester)
	}
	if u.Roll != nil {
		set.Add("roll", *u.Roll)
	}
	if set.Empty() {
		return r.GetStudent(ctx, id)
	}
	query := `UPDATE students SET ` + set.SQL() + ` WHERE id = ` + set.Bind(id) + ` RETURNING ` + studentColumns
	s, err := scanStudent(r.db.QueryRowContext(ctx, query, set.Args()...))
	if err != nil {
		return Student{}, dbx.Classify("update student", err)
	}
	return s, nil
}

// DeleteStudent removes a student and, by cascade, their attendance.
func (r *Repository) DeleteStudent(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "delete student", `DELETE FROM students WHERE id = $1`, id)
}

func (r *Repository) deleteByID(ctx context.Context, op, query string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return dbx.Classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.Classify(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	return nil
}

const teacherColumns = `id, created_at, username, password_hash, course, semester, device_info`

func scanTeacher(row interface{ Scan(...any) error }) (Teacher, error) {
	var (
		t       Teacher
		devices []byte
	)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.Username, &t.PasswordHash, &t.Course, &t.Semester, &devices); err != nil {
		return Teacher{}, err
	}
	t.Devices = []string{}
	if len(devices) > 0 {
		if err := json.Unmarshal(devices, &t.Devices); err != nil {
			return Teacher{}, fmt.Errorf("decode device_info: %w", err)
		}
	}
	return t, nil
}

func encodeDevices(devices []string) ([]byte, error) {
	if devices == nil {
		devices = []string{}
	}
	return json.Marshal(devices)
}

// InsertTeacher writes a new teacher; PasswordHash must already be set.
func (r *Repository) InsertTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	devices, err := encodeDevices(t.Devices)
	if err != nil {
		return Teacher{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teachers (username, password_hash, course, semester, device_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, t.Username, t.PasswordHash, t.Course, t.Semester, devices)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return Teacher{}, dbx.Classify("insert teacher", err)
	}
	if t.Devices == nil {
		t.Devices = []string{}
	}
	return t, nil
}

// GetTeacher returns a teacher by id.
func (r *Repository) GetTeacher(ctx context.Context, id int64) (Teacher, error) {
	t, err := scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id))
	if err != nil {
		return Teacher{}, dbx.Classify("get teacher", err)
	}
	return t, nil
}

// TeacherByUsername returns the teacher with the given username.
func (r *Repository) TeacherByUsername(ctx context.Context, username string) (Teacher, error) {
	t, err := scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE username = $1`, username))
	if err != nil {
		return Teacher{}, dbx.Classify("get teacher by username", err)
	}
	return t, nil
}

// UpdateTeacher applies the non-nil fields of u.
func (r *Repository) UpdateTeacher(ctx context.Context, id int64, u TeacherUpdate, passwordHash string) (Teacher, error) {
	var set dbx.Set
	if u.Username != nil {
		set.Add("username", *u.Username)
	}
	if passwordHash != "" {
		set.Add("password_hash", passwordHash)
	}
	if u.Course != nil {
		set.Add("course", *u.Course)
	}
	if u.Semester != nil {
		set.Add("semester", *u.Semester)
	}
	if u.Devices != nil {
		devices, err := encodeDevices(u.Devices)
		if err != nil {
			return Teacher{}, err
		}
		set.Add("device_info", devices)
	}
	if set.Empty() {
		return r.GetTeacher(ctx, id)
	}
	query := `UPDATE teachers SET ` + set.SQL() + ` WHERE id = ` + set.Bind(id) + ` RETURNING ` + teacherColumns
	t, err := scanTeacher(r.db.QueryRowContext(ctx, query, set.Args()...))
	if err != nil {
		return Teacher{}, dbx.Classify("update teacher", err)
	}
	return t, nil
}
