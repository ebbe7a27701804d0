package roster

import (
	"context"
	"fmt"
	"strings"

	"rollcall/internal/auth"
	"rollcall/internal/common"
)

// Service validates roster input and hashes passwords before they reach the store.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListStudents(ctx context.Context, f Filter) ([]Student, error) {
	return s.repo.ListStudents(ctx, f)
}

func (s *Service) Student(ctx context.Context, id int64) (Student, error) {
	return s.repo.GetStudent(ctx, id)
}

// FindStudents returns every student matching roll and course (and semester when > 0).
func (s *Service) FindStudents(ctx context.Context, roll int, course string, semester int) ([]Student, error) {
	return s.repo.FindStudents(ctx, roll, course, semester)
}

// StudentByRoll returns the single student with roll in course. A roll shared
// across semesters of the same course is reported as a conflict.
func (s *Service) StudentByRoll(ctx context.Context, roll int, course string, semester int) (Student, error) {
	found, err := s.repo.FindStudents(ctx, roll, course, semester)
	if err != nil {
		return Student{}, err
	}
	switch len(found) {
	case 0:
		return Student{}, fmt.Errorf("student roll %d: %w", roll, common.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return Student{}, fmt.Errorf("student roll %d matches %d semesters: %w", roll, len(found), common.ErrConflict)
	}
}

// RegisterStudent validates and stores a new student.
func (s *Service) RegisterStudent(ctx context.Context, in NewStudent) (Student, error) {
	if err := common.Validate(in); err != nil {
		return Student{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Student{}, err
	}
	return s.repo.InsertStudent(ctx, Student{
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		Course:       in.Course,
		Semester:     in.Semester,
		Roll:         in.Roll,
	})
}

func (s *Service) UpdateStudent(ctx context.Context, id int64, u StudentUpdate) (Student, error) {
	if err := common.Validate(u); err != nil {
		return Student{}, err
	}
	hash, err := hashOptional(u.Password)
	if err != nil {
		return Student{}, err
	}
	return s.repo.UpdateStudent(ctx, id, u, hash)
}

func (s *Service) DeleteStudent(ctx context.Context, id int64) error {
	return s.repo.DeleteStudent(ctx, id)
}

// RegisterTeacher validates and stores a new teacher.
func (s *Service) RegisterTeacher(ctx context.Context, in NewTeacher) (Teacher, error) {
	if err := common.Validate(in); err != nil {
		return Teacher{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Teacher{}, err
	}
	return s.repo.InsertTeacher(ctx, Teacher{
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		Course:       in.Course,
		Semester:     in.Semester,
		Devices:      in.Devices,
	})
}

func (s *Service) Teacher(ctx context.Context, id int64) (Teacher, error) {
	return s.repo.GetTeacher(ctx, id)
}

func (s *Service) TeacherByUsername(ctx context.Context, username string) (Teacher, error) {
	return s.repo.TeacherByUsername(ctx, strings.TrimSpace(username))
}

// UpdateTeacher applies a partial profile update.
func (s *Service) UpdateTeacher(ctx context.Context, id int64, u TeacherUpdate) (Teacher, error) {
	if err := common.Validate(u); err != nil {
		return Teacher{}, err
	}
	hash, err := hashOptional(u.Password)
	if err != nil {
		return Teacher{}, err
	}
	return s.repo.UpdateTeacher(ctx, id, u, hash)
}

func hashOptional(password *string) (string, error) {
	if password == nil {
		return "", nil
	}
	return auth.HashPassword(*password)
}
