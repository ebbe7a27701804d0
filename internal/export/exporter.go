package export

import (
	"context"
	"errors"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/common"
	"rollcall/internal/metrics"
	"rollcall/internal/subjects"
)

type SubjectGetter interface {
	Get(ctx context.Context, id int64) (subjects.Subject, error)
}

// RecordSource returns a subject's records with start <= date < end, ordered by date then roll.
type RecordSource interface {
	Range(ctx context.Context, subjectID int64, start, end time.Time) ([]attendance.Record, error)
}

type Request struct {
	SubjectID int64
	Window    Window
	// At picks the period; zero means now.
	At time.Time
}

// Report is a rendered export.
type Report struct {
	FileName string
	Data     []byte
	Rows     int
	Start    time.Time
	End      time.Time
}

// Exporter builds CSV reports.
type Exporter struct {
	subjects SubjectGetter
	records  RecordSource
	loc      *time.Location
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewExporter creates an exporter computing windows in loc.
func NewExporter(subj SubjectGetter, records RecordSource, loc *time.Location, m *metrics.Metrics) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{subjects: subj, records: records, loc: loc, metrics: m, now: time.Now}
}

// Build renders the subject's attendance for the window. It returns
// common.ErrNoData when the window holds no records.
func (e *Exporter) Build(ctx context.Context, req Request) (rep Report, err error) {
	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, common.ErrNoData):
			result = "empty"
		case err != nil:
			result = "error"
		}
		e.metrics.Export(string(req.Window), result)
	}()

	at := req.At
	if at.IsZero() {
		at = e.now()
	}
	start, end, err := req.Window.Bounds(at, e.loc)
	if err != nil {
		return Report{}, err
	}
	subj, err := e.subjects.Get(ctx, req.SubjectID)
	if err != nil {
		return Report{}, err
	}
	recs, err := e.records.Range(ctx, subj.ID, start, end)
	if err != nil {
		return Report{}, err
	}
	if len(recs) == 0 {
		return Report{}, common.ErrNoData
	}
	return Report{
		FileName: req.Window.FileName(start),
		Data:     Render(subj.Name, recs),
		Rows:     len(recs),
		Start:    start,
		End:      end,
	}, nil
}
