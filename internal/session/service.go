package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/auth"
	"rollcall/internal/common"
	"rollcall/internal/logging"
	"rollcall/internal/roster"
)

// Directory looks up the people who may sign in.
type Directory interface {
	TeacherByUsername(ctx context.Context, username string) (roster.Teacher, error)
	FindStudents(ctx context.Context, roll int, course string, semester int) ([]roster.Student, error)
}

// Result is a successful sign-in.
type Result struct {
	Session Session        `json:"session"`
	Tokens  auth.TokenPair `json:"tokens"`
}

// Service verifies credentials and manages server-side sessions.
type Service struct {
	dir    Directory
	store  Store
	tokens *auth.Issuer
	log    logging.Logger
	now    func() time.Time
}

func NewService(dir Directory, store Store, tokens *auth.Issuer, log logging.Logger) *Service {
	return &Service{dir: dir, store: store, tokens: tokens, log: log, now: time.Now}
}

// SignIn checks credentials for role and opens a session. Unknown users and
// wrong passwords both yield common.ErrUnauthorized.
func (s *Service) SignIn(ctx context.Context, role string, c Credentials) (Result, error) {
	if err := common.Validate(c); err != nil {
		return Result{}, err
	}

	var (
		userID int64
		record any
		err    error
	)
	switch role {
	case RoleTeacher:
		var t roster.Teacher
		t, err = s.teacher(ctx, c)
		userID, record = t.ID, t
	case RoleStudent:
		var st roster.Student
		st, err = s.student(ctx, c)
		userID, record = st.ID, st
	default:
		return Result{}, common.NewValidationError(common.FieldError{Field: "role", Error: "must be one of student teacher"})
	}
	if err != nil {
		s.log.Warn(ctx, "sign-in rejected", "role", role, "error", err)
		return Result{}, err
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return Result{}, err
	}
	sess := Session{ID: uuid.NewString(), Role: role, UserID: userID, Record: raw, IssuedAt: s.now().UTC()}
	tokens, err := s.tokens.Issue(sess.ID, role)
	if err != nil {
		return Result{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.Put(ctx, sess, s.tokens.RefreshTTL()); err != nil {
		return Result{}, fmt.Errorf("store session: %w", err)
	}
	s.log.Info(ctx, "signed in", "role", role, "user_id", userID, "session_id", sess.ID)
	return Result{Session: sess, Tokens: tokens}, nil
}

func (s *Service) teacher(ctx context.Context, c Credentials) (roster.Teacher, error) {
	if strings.TrimSpace(c.Username) == "" {
		return roster.Teacher{}, common.NewValidationError(common.FieldError{Field: "username", Error: "is required"})
	}
	t, err := s.dir.TeacherByUsername(ctx, c.Username)
	if errors.Is(err, common.ErrNotFound) {
		return roster.Teacher{}, common.ErrUnauthorized
	}
	if err != nil {
		return roster.Teacher{}, err
	}
	if !auth.CheckPassword(t.PasswordHash, c.Password) {
		return roster.Teacher{}, common.ErrUnauthorized
	}
	if (c.Course != "" && c.Course != t.Course) || (c.Semester > 0 && c.Semester != t.Semester) {
		return roster.Teacher{}, common.ErrUnauthorized
	}
	if !t.AllowsDevice(c.DeviceModel) {
		return roster.Teacher{}, common.ErrDeviceNotAllowed
	}
	return t, nil
}

func (s *Service) student(ctx context.Context, c Credentials) (roster.Student, error) {
	var fields []common.FieldError
	if c.Roll <= 0 {
		fields = append(fields, common.FieldError{Field: "roll", Error: "must be greater than 0"})
	}
	if c.Course == "" {
		fields = append(fields, common.FieldError{Field: "course", Error: "is required"})
	}
	if len(fields) > 0 {
		return roster.Student{}, common.NewValidationError(fields...)
	}
	found, err := s.dir.FindStudents(ctx, c.Roll, c.Course, c.Semester)
	if err != nil {
		return roster.Student{}, err
	}
	if len(found) != 1 {
		return roster.Student{}, common.ErrUnauthorized
	}
	if !auth.CheckPassword(found[0].PasswordHash, c.Password) {
		return roster.Student{}, common.ErrUnauthorized
	}
	return found[0], nil
}

// Resolve returns the live session an access token belongs to.
func (s *Service) Resolve(ctx context.Context, accessToken string) (Session, error) {
	return s.load(ctx, accessToken, auth.KindAccess)
}

// Refresh issues a new token pair for a live session and extends it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	sess, err := s.load(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return auth.TokenPair{}, err
	}
	tokens, err := s.tokens.Issue(sess.ID, sess.Role)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.Put(ctx, sess, s.tokens.RefreshTTL()); err != nil {
		return auth.TokenPair{}, fmt.Errorf("store session: %w", err)
	}
	return tokens, nil
}

// SignOut ends the session behind an access token.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	sess, err := s.load(ctx, accessToken, auth.KindAccess)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.log.Info(ctx, "signed out", "role", sess.Role, "user_id", sess.UserID, "session_id", sess.ID)
	return nil
}

func (s *Service) load(ctx context.Context, token, kind string) (Session, error) {
	claims, err := s.tokens.Parse(token, kind)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	sess, err := s.store.Get(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	if sess.Role != claims.Role {
		return Session{}, common.ErrInvalidToken
	}
	return sess, nil
}

// Principal adapts Resolve to the request middleware.
func (s *Service) Principal(ctx context.Context, accessToken string) (auth.Principal, error) {
	sess, err := s.Resolve(ctx, accessToken)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{SessionID: sess.ID, Role: sess.Role, UserID: sess.UserID}, nil
}
