package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/common"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
)

// Uploader stores a finished file and returns a link to it.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

type builder interface {
	Build(ctx context.Context, req Request) (Report, error)
}

// Processor runs queued export jobs.
type Processor struct {
	exporter builder
	jobs     JobStore
	uploader Uploader
	log      logging.Logger
	now      func() time.Time
}

func NewProcessor(exporter *Exporter, jobs JobStore, uploader Uploader, log logging.Logger) *Processor {
	return &Processor{exporter: exporter, jobs: jobs, uploader: uploader, log: log, now: time.Now}
}

// Run handles messages until the channel closes.
func (p *Processor) Run(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		if err := p.Handle(ctx, msg); err != nil {
			p.log.Error(ctx, "export job failed", "error", err)
		}
	}
}

// Handle builds and uploads one export, recording the outcome on the job.
// A window with no records ends the job as "empty" without an upload.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	var m jobMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		return fmt.Errorf("decode export message: %w", err)
	}
	job, err := p.jobs.Get(ctx, m.JobID)
	if err != nil {
		return err
	}
	log := p.log.With("job_id", job.ID, "subject_id", job.SubjectID, "window", job.Window)

	if err := p.update(ctx, &job, JobRunning); err != nil {
		return err
	}

	rep, err := p.exporter.Build(ctx, Request{SubjectID: job.SubjectID, Window: job.Window, At: job.At})
	switch {
	case errors.Is(err, common.ErrNoData):
		job.Error = common.ErrNoData.Error()
		log.Info(ctx, "export window empty")
		return p.update(ctx, &job, JobEmpty)
	case err != nil:
		job.Error = err.Error()
		_ = p.update(ctx, &job, JobFailed)
		return err
	}

	url, err := p.uploader.Upload(ctx, rep.FileName, rep.Data, "text/csv")
	if err != nil {
		job.Error = "upload failed"
		_ = p.update(ctx, &job, JobFailed)
		return fmt.Errorf("upload %s: %w", rep.FileName, err)
	}

	job.FileName, job.URL, job.Rows, job.Error = rep.FileName, url, rep.Rows, ""
	log.Info(ctx, "export uploaded", "file", rep.FileName, "rows", rep.Rows)
	return p.update(ctx, &job, JobDone)
}

func (p *Processor) update(ctx context.Context, job *Job, status string) error {
	job.Status = status
	job.UpdatedAt = p.now().UTC()
	if err := p.jobs.Save(ctx, *job); err != nil {
		return fmt.Errorf("save export job %s: %w", job.ID, err)
	}
	return nil
}
