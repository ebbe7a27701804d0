// Package client talks to the rollcall HTTP API and keeps local client state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/common"
	"rollcall/internal/export"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/subjects"
)

// Client calls the rollcall API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Token supplies the bearer token for authenticated calls.
	Token func() string
}

// New creates a client with a sane timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Token:   func() string { return "" },
	}
}

// APIError is a non-2xx answer. It unwraps to the matching common error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	case http.StatusForbidden:
		if e.Message == common.ErrDeviceNotAllowed.Error() {
			return common.ErrDeviceNotAllowed
		}
		return common.ErrForbidden
	case http.StatusNotFound:
		if e.Message == common.ErrNoData.Error() {
			return common.ErrNoData
		}
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrConflict
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	resp, err := c.send(ctx, method, path, query, in, c.Token())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, in any, token string) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

type signInRequest struct {
	Role string `json:"role"`
	session.Credentials
}

// SignIn opens a session for role.
func (c *Client) SignIn(ctx context.Context, role string, creds session.Credentials) (session.Result, error) {
	var out session.Result
	resp, err := c.send(ctx, http.MethodPost, "/v1/session", nil, signInRequest{Role: role, Credentials: creds}, "")
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// Refresh trades a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	var out auth.TokenPair
	resp, err := c.send(ctx, http.MethodPost, "/v1/session/refresh", nil, map[string]string{"refresh_token": refreshToken}, "")
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// SignOut ends the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	resp, err := c.send(ctx, http.MethodDelete, "/v1/session", nil, nil, token)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// RegisterDevice reports whether the API has never seen deviceID before.
func (c *Client) RegisterDevice(ctx context.Context, deviceID string) (bool, error) {
	var out struct {
		FirstLaunch bool `json:"first_launch"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/devices/register", nil, map[string]string{"device_id": deviceID}, &out)
	return out.FirstLaunch, err
}

func filterQuery(course string, semester int) url.Values {
	q := url.Values{}
	if course != "" {
		q.Set("course", course)
	}
	if semester > 0 {
		q.Set("semester", strconv.Itoa(semester))
	}
	return q
}

func (c *Client) Subjects(ctx context.Context, f subjects.Filter) ([]subjects.Subject, error) {
	var out struct {
		Subjects []subjects.Subject `json:"subjects"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/subjects", filterQuery(f.Course, f.Semester), nil, &out)
	return out.Subjects, err
}

func (c *Client) Students(ctx context.Context, f roster.Filter) ([]roster.Student, error) {
	var out struct {
		Students []roster.Student `json:"students"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/students", filterQuery(f.Course, f.Semester), nil, &out)
	return out.Students, err
}

// MarkClass marks the present students and the rest of the class absent.
func (c *Client) MarkClass(ctx context.Context, req attendance.ClassRequest) ([]attendance.Record, error) {
	var out struct {
		Records []attendance.Record `json:"records"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/attendance/class", nil, req, &out)
	return out.Records, err
}

func (c *Client) SubjectStats(ctx context.Context) ([]attendance.SubjectStats, error) {
	var out struct {
		Stats []attendance.SubjectStats `json:"stats"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/subjects/stats", nil, nil, &out)
	return out.Stats, err
}

// Export downloads a CSV export and returns the suggested file name with the data.
func (c *Client) Export(ctx context.Context, subjectID int64, window export.Window, at time.Time) (string, []byte, error) {
	q := url.Values{"window": {string(window)}}
	if !at.IsZero() {
		q.Set("at", at.Format(time.RFC3339))
	}
	resp, err := c.send(ctx, http.MethodGet, fmt.Sprintf("/v1/subjects/%d/export", subjectID), q, nil, c.Token())
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	return fileName(resp.Header.Get("Content-Disposition")), data, nil
}

func fileName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return "attendance.csv"
	}
	return params["filename"]
}
