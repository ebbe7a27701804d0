package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/auth"
	"rollcall/internal/common"
	"rollcall/internal/logging"
	"rollcall/internal/roster"
)

const course = "Diploma In Electronics"

type fakeDirectory struct {
	teachers map[string]roster.Teacher
	students []roster.Student
}

func (f fakeDirectory) TeacherByUsername(_ context.Context, username string) (roster.Teacher, error) {
	t, ok := f.teachers[username]
	if !ok {
		return roster.Teacher{}, fmt.Errorf("get teacher: %w", common.ErrNotFound)
	}
	return t, nil
}

func (f fakeDirectory) FindStudents(_ context.Context, roll int, c string, semester int) ([]roster.Student, error) {
	var out []roster.Student
	for _, s := range f.students {
		if s.Roll == roll && s.Course == c && (semester == 0 || s.Semester == semester) {
			out = append(out, s)
		}
	}
	return out, nil
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := auth.HashPassword(pw)
	require.NoError(t, err)
	return h
}

func newService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	hash := mustHash(t, "secret")
	dir := fakeDirectory{
		teachers: map[string]roster.Teacher{
			"mrao": {ID: 1, Username: "mrao", Course: course, Semester: 3, PasswordHash: hash, Devices: []string{"model: Pixel 7"}},
			"open": {ID: 2, Username: "open", Course: course, Semester: 3, PasswordHash: hash},
		},
		students: []roster.Student{
			{ID: 10, Username: "Asha", Course: course, Semester: 3, Roll: 1, PasswordHash: hash},
			{ID: 11, Username: "Old Asha", Course: course, Semester: 5, Roll: 1, PasswordHash: hash},
			{ID: 12, Username: "Bilal", Course: course, Semester: 3, Roll: 2, PasswordHash: hash},
		},
	}
	store := NewMemoryStore()
	iss := auth.NewIssuer("rollcall", "test-key", time.Minute, time.Hour)
	return NewService(dir, store, iss, logging.Discard()), store
}

func TestSignIn_Teacher(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, RoleTeacher, Credentials{Username: "mrao", Password: "secret", DeviceModel: "Pixel 7"})
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, res.Session.Role)
	assert.Equal(t, int64(1), res.Session.UserID)
	assert.NotEmpty(t, res.Tokens.AccessToken)

	var rec roster.Teacher
	require.NoError(t, json.Unmarshal(res.Session.Record, &rec))
	assert.Equal(t, "mrao", rec.Username)
	assert.NotContains(t, string(res.Session.Record), "password")

	got, err := svc.Resolve(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, got.ID)
}

func TestSignIn_TeacherRejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"unknown user", Credentials{Username: "ghost", Password: "secret"}, common.ErrUnauthorized},
		{"wrong password", Credentials{Username: "open", Password: "nope"}, common.ErrUnauthorized},
		{"course mismatch", Credentials{Username: "open", Password: "secret", Course: "B.Voc In Optometry"}, common.ErrUnauthorized},
		{"semester mismatch", Credentials{Username: "open", Password: "secret", Semester: 4}, common.ErrUnauthorized},
		{"foreign device", Credentials{Username: "mrao", Password: "secret", DeviceModel: "iPhone 15"}, common.ErrDeviceNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, RoleTeacher, tc.creds)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSignIn_Student(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, RoleStudent, Credentials{Roll: 2, Course: course, Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Session.UserID)

	// roll 1 exists in two semesters: ambiguous without one
	_, err = svc.SignIn(ctx, RoleStudent, Credentials{Roll: 1, Course: course, Password: "secret"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	res, err = svc.SignIn(ctx, RoleStudent, Credentials{Roll: 1, Course: course, Semester: 5, Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.Session.UserID)

	_, err = svc.SignIn(ctx, RoleStudent, Credentials{Roll: 2, Course: course, Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestSignIn_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "admin", Credentials{Password: "x"})
	assert.True(t, common.IsValidation(err))

	_, err = svc.SignIn(ctx, RoleStudent, Credentials{Password: "x"})
	assert.True(t, common.IsValidation(err))

	_, err = svc.SignIn(ctx, RoleTeacher, Credentials{Username: "mrao"})
	assert.True(t, common.IsValidation(err))
}

func TestSignOut_InvalidatesSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, RoleTeacher, Credentials{Username: "open", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, res.Tokens.AccessToken))

	_, err = svc.Resolve(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
	_, err = svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestRefresh(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, RoleTeacher, Credentials{Username: "open", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	pair, err := svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)

	p, err := svc.Principal(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{SessionID: res.Session.ID, Role: RoleTeacher, UserID: 2}, p)
}

func TestResolve_Garbage(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Resolve(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
