package attendance

import (
	"context"
	"database/sql"
	"time"

	"rollcall/internal/dbx"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const upsertSQL = `
	INSERT INTO attendance (student_id, subject_id, date, status)
	VALUES ($1, $2, $3::date, $4)
	ON CONFLICT (student_id, subject_id, date) DO UPDATE SET status = EXCLUDED.status
	RETURNING id, created_at, student_id, subject_id, to_char(date, 'YYYY-MM-DD'), status`

// Mark upserts all entries for one subject and day in a single transaction.
// Re-marking a student on the same day replaces the earlier status.
func (r *Repository) Mark(ctx context.Context, subjectID int64, date string, entries []Entry) ([]Record, error) {
	out := make([]Record, 0, len(entries))
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, e := range entries {
			var rec Record
			err := tx.QueryRowContext(ctx, upsertSQL, e.StudentID, subjectID, date, e.Status).
				Scan(&rec.ID, &rec.CreatedAt, &rec.StudentID, &rec.SubjectID, &rec.Date, &rec.Status)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, dbx.Classify("mark attendance", err)
	}
	return out, nil
}

const selectJoined = `
	SELECT a.id, a.created_at, a.student_id, a.subject_id, to_char(a.date, 'YYYY-MM-DD'), a.status,
	       st.username, st.roll, sb.name, sb.code, sb.course, sb.semester
	FROM attendance a
	JOIN students st ON st.id = a.student_id
	JOIN subjects sb ON sb.id = a.subject_id`

// List returns records newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	var w dbx.Where
	if f.SubjectID > 0 {
		w.Eq("a.subject_id", f.SubjectID)
	}
	if f.StudentID > 0 {
		w.Eq("a.student_id", f.StudentID)
	}
	if f.Course != "" {
		w.Eq("sb.course", f.Course)
	}
	if f.Semester > 0 {
		w.Eq("sb.semester", f.Semester)
	}
	if f.Date != "" {
		w.Op("a.date", "=", f.Date)
	}
	if f.From != "" {
		w.Op("a.date", ">=", f.From)
	}
	if f.To != "" {
		w.Op("a.date", "<=", f.To)
	}
	return r.query(ctx, "list attendance", selectJoined+w.SQL()+` ORDER BY a.created_at DESC, a.id DESC`, w.Args()...)
}

// Range returns a subject's records with start <= date < end, ordered by date then roll.
func (r *Repository) Range(ctx context.Context, subjectID int64, start, end time.Time) ([]Record, error) {
	var w dbx.Where
	w.Eq("a.subject_id", subjectID)
	w.Op("a.date", ">=", start.Format(DateLayout))
	w.Op("a.date", "<", end.Format(DateLayout))
	return r.query(ctx, "attendance range", selectJoined+w.SQL()+` ORDER BY a.date, st.roll, a.id`, w.Args()...)
}

func (r *Repository) query(ctx context.Context, op, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Classify(op, err)
	}
	defer rows.Close()

	res := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.StudentID, &rec.SubjectID, &rec.Date, &rec.Status,
			&rec.StudentName, &rec.Roll, &rec.SubjectName, &rec.SubjectCode, &rec.Course, &rec.Semester); err != nil {
			return nil, dbx.Classify(op, err)
		}
		res = append(res, rec)
	}
	return res, dbx.Classify(op, rows.Err())
}

// Stats counts a subject's records by status.
func (r *Repository) Stats(ctx context.Context, subjectID int64) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'present'),
		       COUNT(*) FILTER (WHERE status = 'absent'),
		       COUNT(*) FILTER (WHERE status = 'late')
		FROM attendance WHERE subject_id = $1
	`, subjectID).Scan(&s.Total, &s.Present, &s.Absent, &s.Late)
	if err != nil {
		return Stats{}, dbx.Classify("attendance stats", err)
	}
	return s, nil
}
