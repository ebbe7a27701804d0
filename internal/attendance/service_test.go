package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/common"
	"rollcall/internal/logging"
	"rollcall/internal/roster"
	"rollcall/internal/subjects"
)

type fakeStore struct {
	mu        sync.Mutex
	marked    []Entry
	date      string
	subjectID int64
	stats     func(id int64) (Stats, error)
	listed    []Filter
}

func (f *fakeStore) Mark(_ context.Context, subjectID int64, date string, entries []Entry) ([]Record, error) {
	f.subjectID, f.date, f.marked = subjectID, date, entries
	recs := make([]Record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, Record{StudentID: e.StudentID, SubjectID: subjectID, Date: date, Status: e.Status})
	}
	return recs, nil
}

func (f *fakeStore) List(_ context.Context, fl Filter) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, fl)
	return []Record{}, nil
}

func (f *fakeStore) Stats(_ context.Context, id int64) (Stats, error) {
	return f.stats(id)
}

type fakeSubjects map[int64]subjects.Subject

func (f fakeSubjects) Get(_ context.Context, id int64) (subjects.Subject, error) {
	s, ok := f[id]
	if !ok {
		return subjects.Subject{}, fmt.Errorf("get subject: %w", common.ErrNotFound)
	}
	return s, nil
}

type fakeRoster []roster.Student

func (f fakeRoster) ListStudents(_ context.Context, fl roster.Filter) ([]roster.Student, error) {
	var out []roster.Student
	for _, s := range f {
		if s.Course == fl.Course && s.Semester == fl.Semester {
			out = append(out, s)
		}
	}
	return out, nil
}

const course = "Diploma In Electronics"

func newService(store *fakeStore, concurrency int) *Service {
	subj := fakeSubjects{7: {ID: 7, Name: "DSD", Code: "EC301", Course: course, Semester: 3}}
	class := fakeRoster{
		{ID: 1, Username: "Asha", Course: course, Semester: 3, Roll: 1},
		{ID: 2, Username: "Bilal", Course: course, Semester: 3, Roll: 2},
		{ID: 3, Username: "Chen", Course: course, Semester: 3, Roll: 3},
		{ID: 4, Username: "Dev", Course: course, Semester: 5, Roll: 1},
	}
	svc := NewService(store, subj, class, nil, logging.Discard(), concurrency, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC) }
	return svc
}

func TestMark_DefaultsDateAndDedupes(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store, 1)

	recs, err := svc.Mark(context.Background(), MarkRequest{
		SubjectID: 7,
		Entries: []Entry{
			{StudentID: 1, Status: StatusAbsent},
			{StudentID: 2, Status: StatusPresent},
			{StudentID: 1, Status: StatusLate},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", store.date)
	assert.Equal(t, []Entry{{StudentID: 1, Status: StatusLate}, {StudentID: 2, Status: StatusPresent}}, store.marked)
	assert.Len(t, recs, 2)
}

func TestMark_DefaultDateFollowsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+14", 14*60*60)
	store := &fakeStore{}
	svc := NewService(store, fakeSubjects{}, fakeRoster{}, nil, logging.Discard(), 1, loc)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Mark(context.Background(), MarkRequest{
		SubjectID: 7,
		Entries:   []Entry{{StudentID: 1, Status: StatusPresent}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", store.date)

	// the stored day must sit inside the local calendar day an export for "now" covers
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	marked, err := time.ParseInLocation(DateLayout, store.date, loc)
	require.NoError(t, err)
	assert.False(t, marked.Before(dayStart))
	assert.True(t, marked.Before(dayStart.AddDate(0, 0, 1)))
}

func TestMark_Validation(t *testing.T) {
	cases := map[string]MarkRequest{
		"no entries":   {SubjectID: 7},
		"bad status":   {SubjectID: 7, Entries: []Entry{{StudentID: 1, Status: "excused"}}},
		"bad date":     {SubjectID: 7, Date: "01/03/2024", Entries: []Entry{{StudentID: 1, Status: StatusPresent}}},
		"missing subj": {Entries: []Entry{{StudentID: 1, Status: StatusPresent}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			_, err := newService(store, 1).Mark(context.Background(), req)
			require.Error(t, err)
			assert.True(t, common.IsValidation(err))
			assert.Nil(t, store.marked)
		})
	}
}

func TestMarkClass_SelectedPresentRestAbsent(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store, 1)

	_, err := svc.MarkClass(context.Background(), ClassRequest{SubjectID: 7, Date: "2024-03-01", Present: []int64{1, 3}})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{StudentID: 1, Status: StatusPresent},
		{StudentID: 2, Status: StatusAbsent},
		{StudentID: 3, Status: StatusPresent},
	}, store.marked)
}

func TestMarkClass_RejectsStrangers(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store, 1)

	_, err := svc.MarkClass(context.Background(), ClassRequest{SubjectID: 7, Present: []int64{1, 4}})
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
	assert.Contains(t, err.Error(), "student 4 is not enrolled in DSD")
	assert.Nil(t, store.marked)
}

func TestMarkClass_UnknownSubject(t *testing.T) {
	_, err := newService(&fakeStore{}, 1).MarkClass(context.Background(), ClassRequest{SubjectID: 99})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_ValidatesDates(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store, 1)

	_, err := svc.List(context.Background(), Filter{From: "March"})
	assert.True(t, common.IsValidation(err))

	_, err = svc.History(context.Background(), 7, 0)
	require.NoError(t, err)
	_, err = svc.History(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Equal(t, []Filter{{SubjectID: 7}, {SubjectID: 7, StudentID: 2}}, store.listed)
}

func TestStatsForSubjects_OrderAndIsolation(t *testing.T) {
	boom := errors.New("boom")
	store := &fakeStore{stats: func(id int64) (Stats, error) {
		if id == 2 {
			return Stats{}, boom
		}
		// later ids finish first
		time.Sleep(time.Duration(10-id) * time.Millisecond)
		return Stats{Total: int(id)}, nil
	}}
	svc := newService(store, 3)

	got := svc.StatsForSubjects(context.Background(), []int64{1, 2, 3, 4})
	require.Len(t, got, 4)
	for i, id := range []int64{1, 2, 3, 4} {
		assert.Equal(t, id, got[i].SubjectID)
	}
	assert.ErrorIs(t, got[1].Err, boom)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, 1, got[0].Stats.Total)
	assert.Equal(t, 4, got[3].Stats.Total)
	assert.NoError(t, got[3].Err)
}

func TestStatsForSubjects_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	store := &fakeStore{stats: func(int64) (Stats, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return Stats{}, nil
	}}
	svc := newService(store, 2)

	ids := make([]int64, 10)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	got := svc.StatsForSubjects(context.Background(), ids)
	assert.Len(t, got, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
