package subjects

import (
	"context"
	"strings"
	"time"

	"rollcall/internal/common"
	"rollcall/internal/logging"
	"rollcall/internal/notify"
)

// Publisher receives subject status changes.
type Publisher interface {
	Publish(ctx context.Context, evt notify.Event) error
}

// Service validates subject input and announces status changes.
type Service struct {
	repo *Repository
	bus  Publisher
	log  logging.Logger
	now  func() time.Time
}

// NewService creates a service. bus may be nil when nobody listens for changes.
func NewService(repo *Repository, bus Publisher, log logging.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: time.Now}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Subject, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (Subject, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new subject. Status defaults to inactive.
func (s *Service) Create(ctx context.Context, in NewSubject) (Subject, error) {
	if err := common.Validate(in); err != nil {
		return Subject{}, err
	}
	if in.Status == "" {
		in.Status = StatusInactive
	}
	return s.repo.Insert(ctx, Subject{
		Name:     strings.TrimSpace(in.Name),
		Code:     strings.TrimSpace(in.Code),
		Status:   in.Status,
		Course:   in.Course,
		Semester: in.Semester,
	})
}

func (s *Service) Update(ctx context.Context, id int64, u Update) (Subject, error) {
	if err := common.Validate(u); err != nil {
		return Subject{}, err
	}
	return s.repo.Update(ctx, id, u)
}

// SetStatus activates or deactivates a subject and publishes the change.
// A failed publish is logged; the stored status stands.
func (s *Service) SetStatus(ctx context.Context, id int64, status string) (Subject, error) {
	if err := common.Validate(statusChange{Status: status}); err != nil {
		return Subject{}, err
	}
	subj, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return Subject{}, err
	}
	if s.bus != nil {
		evt := notify.Event{SubjectID: subj.ID, Name: subj.Name, Status: subj.Status, At: s.now().UTC()}
		if err := s.bus.Publish(ctx, evt); err != nil {
			s.log.Warn(ctx, "publish subject change failed", "subject_id", subj.ID, "error", err)
		}
	}
	return subj, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
