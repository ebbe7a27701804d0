package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/common"
	"rollcall/internal/export"
	"rollcall/internal/session"
	"rollcall/internal/subjects"
)

func TestClient_SignInAndHolder(t *testing.T) {
	var signedOutWith string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/session":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["role"] != "teacher" || body["username"] != "mrao" || body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"session":{"id":"s1","role":"teacher","user_id":1,"record":{"username":"mrao"}},
				"tokens":{"access_token":"acc","refresh_token":"ref"}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/session":
			signedOutWith = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL)
	local, err := OpenLocalStore(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer local.Close()

	h := session.NewHolder(c, local)
	c.Token = h.Token
	require.NoError(t, h.Init(ctx))

	err = h.SignIn(ctx, session.RoleTeacher, session.Credentials{Username: "mrao", Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	require.NoError(t, h.SignIn(ctx, session.RoleTeacher, session.Credentials{Username: "mrao", Password: "secret"}))
	assert.Equal(t, "acc", h.Token())

	require.NoError(t, h.SignOut(ctx))
	assert.Equal(t, "Bearer acc", signedOutWith)
	assert.Equal(t, session.Anonymous, h.State())
}

func TestClient_AuthenticatedCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
			return
		}
		switch r.URL.Path {
		case "/v1/subjects":
			assert.Equal(t, "Diploma In Electronics", r.URL.Query().Get("course"))
			assert.Equal(t, "3", r.URL.Query().Get("semester"))
			_, _ = w.Write([]byte(`{"subjects":[{"id":7,"name":"DSD","status":"active"}]}`))
		case "/v1/attendance/class":
			var req attendance.ClassRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, []int64{1, 3}, req.Present)
			_, _ = w.Write([]byte(`{"records":[{"student_id":1,"status":"present"},{"student_id":3,"status":"present"}]}`))
		case "/v1/subjects/7/export":
			assert.Equal(t, "lecture", r.URL.Query().Get("window"))
			w.Header().Set("Content-Disposition", `attachment; filename="Lecture_2024-03-01_attendance.csv"`)
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(`"Roll Number"`))
		case "/v1/subjects/8/export":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no attendance records found"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL)
	c.Token = func() string { return "tok" }

	subs, err := c.Subjects(ctx, subjects.Filter{Course: "Diploma In Electronics", Semester: 3})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "DSD", subs[0].Name)

	recs, err := c.MarkClass(ctx, attendance.ClassRequest{SubjectID: 7, Present: []int64{1, 3}})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	name, data, err := c.Export(ctx, 7, export.WindowLecture, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "Lecture_2024-03-01_attendance.csv", name)
	assert.Equal(t, `"Roll Number"`, string(data))

	_, _, err = c.Export(ctx, 8, export.WindowLecture, time.Time{})
	assert.ErrorIs(t, err, common.ErrNoData)

	c.Token = func() string { return "" }
	_, err = c.Subjects(ctx, subjects.Filter{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid token", apiErr.Message)
}

func TestClient_RefreshesExpiredSession(t *testing.T) {
	var refreshBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/session":
			_, _ = w.Write([]byte(`{"session":{"id":"s1","role":"teacher","user_id":1,"record":{}},
				"tokens":{"access_token":"old","refresh_token":"ref-1"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/session/refresh":
			assert.Empty(t, r.Header.Get("Authorization"))
			_ = json.NewDecoder(r.Body).Decode(&refreshBody)
			_, _ = w.Write([]byte(`{"access_token":"new","refresh_token":"ref-2"}`))
		case r.Header.Get("Authorization") != "Bearer new":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
		case r.URL.Path == "/v1/subjects":
			_, _ = w.Write([]byte(`{"subjects":[{"id":7,"name":"DSD"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL)
	local, err := OpenLocalStore(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer local.Close()
	h := session.NewHolder(c, local)
	c.Token = h.Token
	require.NoError(t, h.SignIn(ctx, session.RoleTeacher, session.Credentials{Username: "mrao", Password: "secret"}))

	var list []subjects.Subject
	err = h.Do(ctx, func(ctx context.Context) (err error) {
		list, err = c.Subjects(ctx, subjects.Filter{})
		return err
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, map[string]string{"refresh_token": "ref-1"}, refreshBody)

	raw, ok, err := local.Get(ctx, session.KeySession)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"token":"new"`)
	assert.Contains(t, raw, `"refresh_token":"ref-2"`)
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		`attachment; filename="Monthly_2024_03_attendance.csv"`: "Monthly_2024_03_attendance.csv",
		`attachment; filename=Yearly_2024_attendance.csv`:       "Yearly_2024_attendance.csv",
		`attachment; filename="DSD \"lab\".csv"`:              `DSD "lab".csv`,
		`attachment`:                                            "attendance.csv",
		``:                                                      "attendance.csv",
	}
	for in, want := range cases {
		assert.Equal(t, want, fileName(in), in)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	assert.ErrorIs(t, &APIError{Status: 403, Message: "login not allowed from this device"}, common.ErrDeviceNotAllowed)
	assert.ErrorIs(t, &APIError{Status: 403, Message: "forbidden"}, common.ErrForbidden)
	assert.ErrorIs(t, &APIError{Status: 409}, common.ErrConflict)
	assert.ErrorIs(t, &APIError{Status: 404, Message: "not found"}, common.ErrNotFound)
	assert.Nil(t, (&APIError{Status: 500}).Unwrap())
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenLocalStore(ctx, path)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, session.KeyFirstLaunch)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, session.KeyFirstLaunch, "true"))
	require.NoError(t, s.Set(ctx, session.KeyFirstLaunch, "false"))
	require.NoError(t, s.Close())

	// reopened store keeps values
	s, err = OpenLocalStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, session.KeyFirstLaunch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)

	require.NoError(t, s.Delete(ctx, session.KeyFirstLaunch))
	_, ok, _ = s.Get(ctx, session.KeyFirstLaunch)
	assert.False(t, ok)
}
