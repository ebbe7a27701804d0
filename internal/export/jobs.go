package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rollcall/internal/common"
	"rollcall/internal/queue"
)

// MessageType tags export jobs on the queue.
const MessageType = "export"

const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobEmpty   = "empty"
	JobFailed  = "failed"
)

// Job tracks one background export.
type Job struct {
	ID        string    `json:"id"`
	SubjectID int64     `json:"subject_id"`
	Window    Window    `json:"window"`
	At        time.Time `json:"at"`
	Status    string    `json:"status"`
	FileName  string    `json:"file_name,omitempty"`
	URL       string    `json:"url,omitempty"`
	Rows      int       `json:"rows,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobStore interface {
	Save(ctx context.Context, job Job) error
	// Get returns common.ErrNotFound for unknown or expired jobs.
	Get(ctx context.Context, id string) (Job, error)
}

// RedisJobs keeps job state under export:job:<id> with a TTL.
type RedisJobs struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisJobs(client *redis.Client, ttl time.Duration) *RedisJobs {
	return &RedisJobs{client: client, ttl: ttl}
}

func jobKey(id string) string { return "export:job:" + id }

func (r *RedisJobs) Save(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, jobKey(job.ID), raw, r.ttl).Err()
}

func (r *RedisJobs) Get(ctx context.Context, id string) (Job, error) {
	raw, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, fmt.Errorf("export job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, fmt.Errorf("decode export job %s: %w", id, err)
	}
	return job, nil
}

// MemoryJobs is a JobStore for single-process setups and tests.
type MemoryJobs struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{jobs: map[string]Job{}}
}

func (m *MemoryJobs) Save(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryJobs) Get(_ context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("export job %s: %w", id, common.ErrNotFound)
	}
	return job, nil
}

type jobMessage struct {
	JobID string `json:"job_id"`
}

// Dispatcher records export jobs and hands them to the worker queue.
type Dispatcher struct {
	subjects SubjectGetter
	jobs     JobStore
	queue    queue.Queue
	now      func() time.Time
}

func NewDispatcher(subj SubjectGetter, jobs JobStore, q queue.Queue) *Dispatcher {
	return &Dispatcher{subjects: subj, jobs: jobs, queue: q, now: time.Now}
}

// Enqueue validates the request, stores a queued job and publishes it.
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) (Job, error) {
	if _, _, err := req.Window.Bounds(time.Now(), time.UTC); err != nil {
		return Job{}, err
	}
	if _, err := d.subjects.Get(ctx, req.SubjectID); err != nil {
		return Job{}, err
	}
	now := d.now().UTC()
	at := req.At
	if at.IsZero() {
		at = now
	}
	job := Job{
		ID:        uuid.NewString(),
		SubjectID: req.SubjectID,
		Window:    req.Window,
		At:        at,
		Status:    JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.jobs.Save(ctx, job); err != nil {
		return Job{}, fmt.Errorf("save export job: %w", err)
	}
	msg, err := queue.NewMessage(MessageType, jobMessage{JobID: job.ID})
	if err != nil {
		return Job{}, err
	}
	if err := d.queue.Publish(ctx, msg); err != nil {
		job.Status, job.Error = JobFailed, "queue unavailable"
		_ = d.jobs.Save(ctx, job)
		return Job{}, fmt.Errorf("publish export job: %w", err)
	}
	return job, nil
}

func (d *Dispatcher) Job(ctx context.Context, id string) (Job, error) {
	return d.jobs.Get(ctx, id)
}
