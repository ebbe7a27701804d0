// Package attendance records and summarises per-day attendance.
package attendance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rollcall/internal/common"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/roster"
	"rollcall/internal/subjects"
)

// Store is the persistence the service needs.
type Store interface {
	Mark(ctx context.Context, subjectID int64, date string, entries []Entry) ([]Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	Stats(ctx context.Context, subjectID int64) (Stats, error)
}

type SubjectGetter interface {
	Get(ctx context.Context, id int64) (subjects.Subject, error)
}

type StudentLister interface {
	ListStudents(ctx context.Context, f roster.Filter) ([]roster.Student, error)
}

// Service validates marking requests and aggregates statistics.
type Service struct {
	store       Store
	subjects    SubjectGetter
	students    StudentLister
	metrics     *metrics.Metrics
	log         logging.Logger
	concurrency int
	loc         *time.Location
	now         func() time.Time
}

// NewService wires the service. concurrency bounds the stats fan-out; values below 1 mean 1.
// loc decides which calendar day "today" is when a request carries no date; nil means UTC.
func NewService(store Store, subj SubjectGetter, students StudentLister, m *metrics.Metrics, log logging.Logger, concurrency int, loc *time.Location) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:       store,
		subjects:    subj,
		students:    students,
		metrics:     m,
		log:         log,
		concurrency: concurrency,
		loc:         loc,
		now:         time.Now,
	}
}

// Mark stores explicit statuses for one subject and day. A student listed
// twice keeps the last status given.
func (s *Service) Mark(ctx context.Context, req MarkRequest) ([]Record, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if req.Date == "" {
		req.Date = s.now().In(s.loc).Format(DateLayout)
	}

	entries := dedupe(req.Entries)
	recs, err := s.store.Mark(ctx, req.SubjectID, req.Date, entries)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, r := range recs {
		counts[r.Status]++
	}
	for status, n := range counts {
		s.metrics.AttendanceMarked(status, n)
	}
	s.log.Info(ctx, "attendance marked", "subject_id", req.SubjectID, "date", req.Date, "rows", len(recs))
	return recs, nil
}

func dedupe(entries []Entry) []Entry {
	pos := make(map[int64]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.StudentID]; ok {
			out[i].Status = e.Status
			continue
		}
		pos[e.StudentID] = len(out)
		out = append(out, e)
	}
	return out
}

// MarkClass marks the selected students present and every other student
// enrolled in the subject's course and semester absent.
func (s *Service) MarkClass(ctx context.Context, req ClassRequest) ([]Record, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	subj, err := s.subjects.Get(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	class, err := s.students.ListStudents(ctx, roster.Filter{Course: subj.Course, Semester: subj.Semester})
	if err != nil {
		return nil, err
	}
	if len(class) == 0 {
		return nil, common.NewValidationError(common.FieldError{Field: "subject_id", Error: "has no enrolled students"})
	}

	present := make(map[int64]bool, len(req.Present))
	for _, id := range req.Present {
		present[id] = true
	}
	entries := make([]Entry, 0, len(class))
	for _, st := range class {
		status := StatusAbsent
		if present[st.ID] {
			status = StatusPresent
			delete(present, st.ID)
		}
		entries = append(entries, Entry{StudentID: st.ID, Status: status})
	}
	if len(present) > 0 {
		var fields []common.FieldError
		for _, id := range req.Present {
			if present[id] {
				fields = append(fields, common.FieldError{Field: "present", Error: fmt.Sprintf("student %d is not enrolled in %s", id, subj.Name)})
			}
		}
		return nil, common.NewValidationError(fields...)
	}

	return s.Mark(ctx, MarkRequest{SubjectID: req.SubjectID, Date: req.Date, Entries: entries})
}

// List returns records matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	var fields []common.FieldError
	for _, p := range [][2]string{{"date", f.Date}, {"from", f.From}, {"to", f.To}} {
		if p[1] == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, p[1]); err != nil {
			fields = append(fields, common.FieldError{Field: p[0], Error: "must be a date in " + DateLayout + " layout"})
		}
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError(fields...)
	}
	return s.store.List(ctx, f)
}

// History returns the records of one subject, newest first. A studentID > 0
// narrows it to that student.
func (s *Service) History(ctx context.Context, subjectID, studentID int64) ([]Record, error) {
	return s.store.List(ctx, Filter{SubjectID: subjectID, StudentID: studentID})
}

func (s *Service) Stats(ctx context.Context, subjectID int64) (Stats, error) {
	return s.store.Stats(ctx, subjectID)
}

// StatsForSubjects computes stats for each id with at most s.concurrency
// lookups in flight. Results follow the input order; a failed lookup is
// reported in its own entry and never stops the others.
func (s *Service) StatsForSubjects(ctx context.Context, ids []int64) []SubjectStats {
	out := make([]SubjectStats, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			st, err := s.store.Stats(ctx, id)
			out[i] = SubjectStats{SubjectID: id, Stats: st, Err: err}
			if err != nil {
				out[i].Error = err.Error()
				s.metrics.StatsFailed()
				s.log.Warn(ctx, "subject stats failed", "subject_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
