package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/common"
	"rollcall/internal/metrics"
	"rollcall/internal/subjects"
)

const course = "Diploma In Electronics"

type fakeSubjects map[int64]subjects.Subject

func (f fakeSubjects) Get(_ context.Context, id int64) (subjects.Subject, error) {
	s, ok := f[id]
	if !ok {
		return subjects.Subject{}, fmt.Errorf("get subject: %w", common.ErrNotFound)
	}
	return s, nil
}

type fakeRecords struct {
	recs       []attendance.Record
	err        error
	start, end time.Time
}

func (f *fakeRecords) Range(_ context.Context, _ int64, start, end time.Time) ([]attendance.Record, error) {
	f.start, f.end = start, end
	return f.recs, f.err
}

func dsdRecords() []attendance.Record {
	row := func(roll int, name, status string) attendance.Record {
		return attendance.Record{StudentName: name, Roll: roll, SubjectID: 7, SubjectName: "DSD",
			Course: course, Semester: 3, Date: "2024-03-01", Status: status}
	}
	return []attendance.Record{
		row(1, "rollA", attendance.StatusPresent),
		row(2, "rollB", attendance.StatusAbsent),
		row(3, "rollC", attendance.StatusPresent),
	}
}

func newExporter(records *fakeRecords) *Exporter {
	subj := fakeSubjects{7: {ID: 7, Name: "DSD", Code: "EC301", Course: course, Semester: 3}}
	return NewExporter(subj, records, time.UTC, metrics.New(prometheus.NewRegistry()))
}

func TestBuild_LectureScenario(t *testing.T) {
	records := &fakeRecords{recs: dsdRecords()}
	exp := newExporter(records)

	rep, err := exp.Build(context.Background(), Request{
		SubjectID: 7, Window: WindowLecture, At: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lecture_2024-03-01_attendance.csv", rep.FileName)
	assert.Equal(t, 3, rep.Rows)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), records.end)

	lines := strings.Split(string(rep.Data), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `"Roll Number","Student Name","Subject","Semester","Course","Date","Status"`, lines[0])
	assert.Equal(t, 2, strings.Count(string(rep.Data), `"Present"`))
	assert.Equal(t, 1, strings.Count(string(rep.Data), `"Absent"`))
	for _, l := range lines[1:] {
		assert.Contains(t, l, `,"DSD",`)
	}
}

func TestBuild_NoData(t *testing.T) {
	exp := newExporter(&fakeRecords{})

	_, err := exp.Build(context.Background(), Request{SubjectID: 7, Window: WindowMonth})
	assert.ErrorIs(t, err, common.ErrNoData)
	assert.Equal(t, "no attendance records found", common.ErrNoData.Error())
}

func TestBuild_Errors(t *testing.T) {
	exp := newExporter(&fakeRecords{err: errors.New("db down")})

	_, err := exp.Build(context.Background(), Request{SubjectID: 99, Window: WindowYear})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = exp.Build(context.Background(), Request{SubjectID: 7, Window: "week"})
	assert.ErrorIs(t, err, common.ErrUnsupportedWindow)

	_, err = exp.Build(context.Background(), Request{SubjectID: 7, Window: WindowYear})
	assert.ErrorContains(t, err, "db down")
}

func TestRender_RoundTripsThroughCSVReader(t *testing.T) {
	recs := dsdRecords()
	recs[1].StudentName = `Bilal "Bill", Jr.`

	data := Render(`DSD "core"`, recs)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(recs)+1)

	want := []string{"2", `Bilal "Bill", Jr.`, `DSD "core"`, "3", course, "2024-03-01", "Absent"}
	if diff := cmp.Diff(want, rows[2]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, string(data), `"Bilal ""Bill"", Jr."`)
}

func TestRender_UnknownStatusPassesThrough(t *testing.T) {
	data := Render("DSD", []attendance.Record{{Roll: 1, Status: "excused"}})
	assert.True(t, strings.HasSuffix(string(data), `"excused"`))
}
