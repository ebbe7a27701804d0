// Package handler exposes the rollcall services over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/common"
	"rollcall/internal/export"
	"rollcall/internal/logging"
	"rollcall/internal/notify"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/subjects"
)

type SubjectService interface {
	List(ctx context.Context, f subjects.Filter) ([]subjects.Subject, error)
	Get(ctx context.Context, id int64) (subjects.Subject, error)
	Create(ctx context.Context, in subjects.NewSubject) (subjects.Subject, error)
	Update(ctx context.Context, id int64, u subjects.Update) (subjects.Subject, error)
	SetStatus(ctx context.Context, id int64, status string) (subjects.Subject, error)
	Delete(ctx context.Context, id int64) error
}

type RosterService interface {
	ListStudents(ctx context.Context, f roster.Filter) ([]roster.Student, error)
	Student(ctx context.Context, id int64) (roster.Student, error)
	StudentByRoll(ctx context.Context, roll int, course string, semester int) (roster.Student, error)
	RegisterStudent(ctx context.Context, in roster.NewStudent) (roster.Student, error)
	UpdateStudent(ctx context.Context, id int64, u roster.StudentUpdate) (roster.Student, error)
	DeleteStudent(ctx context.Context, id int64) error
	RegisterTeacher(ctx context.Context, in roster.NewTeacher) (roster.Teacher, error)
	Teacher(ctx context.Context, id int64) (roster.Teacher, error)
	UpdateTeacher(ctx context.Context, id int64, u roster.TeacherUpdate) (roster.Teacher, error)
}

type AttendanceService interface {
	Mark(ctx context.Context, req attendance.MarkRequest) ([]attendance.Record, error)
	MarkClass(ctx context.Context, req attendance.ClassRequest) ([]attendance.Record, error)
	List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
	History(ctx context.Context, subjectID, studentID int64) ([]attendance.Record, error)
	Stats(ctx context.Context, subjectID int64) (attendance.Stats, error)
	StatsForSubjects(ctx context.Context, ids []int64) []attendance.SubjectStats
}

type SessionService interface {
	SignIn(ctx context.Context, role string, c session.Credentials) (session.Result, error)
	Resolve(ctx context.Context, accessToken string) (session.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	SignOut(ctx context.Context, accessToken string) error
	Principal(ctx context.Context, accessToken string) (auth.Principal, error)
}

type ReportBuilder interface {
	Build(ctx context.Context, req export.Request) (export.Report, error)
}

type ExportQueue interface {
	Enqueue(ctx context.Context, req export.Request) (export.Job, error)
	Job(ctx context.Context, id string) (export.Job, error)
}

type DeviceRegistry interface {
	Register(ctx context.Context, deviceID string) (bool, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan notify.Event, func(), error)
}

// Deps are the services behind the routes. Exports, Devices and Changes may
// be nil; their routes then answer 503.
type Deps struct {
	Subjects   SubjectService
	Roster     RosterService
	Attendance AttendanceService
	Sessions   SessionService
	Reports    ReportBuilder
	Exports    ExportQueue
	Devices    DeviceRegistry
	Changes    Subscriber
	Log        logging.Logger
	// Location anchors bare export dates; nil means UTC.
	Location *time.Location
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	return &Handler{Deps: d}
}

// Register mounts the /v1 routes on r. loginLimit, when set, guards the
// sign-in and registration routes.
func (h *Handler) Register(r gin.IRouter, loginLimit gin.HandlerFunc) {
	open := []gin.HandlerFunc{}
	if loginLimit != nil {
		open = append(open, loginLimit)
	}
	guarded := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, open...), hf)
	}

	r.POST("/v1/devices/register", h.RegisterDevice)
	r.POST("/v1/students/register", guarded(h.RegisterStudent)...)
	r.POST("/v1/teachers/register", guarded(h.RegisterTeacher)...)
	r.POST("/v1/session", guarded(h.SignIn)...)
	r.POST("/v1/session/refresh", guarded(h.Refresh)...)

	v1 := r.Group("/v1", auth.RequireSession(h.Sessions.Principal))
	teacher := auth.RequireRole(session.RoleTeacher)

	v1.GET("/session", h.CurrentSession)
	v1.DELETE("/session", h.SignOut)

	v1.GET("/subjects", h.ListSubjects)
	v1.POST("/subjects", teacher, h.CreateSubject)
	v1.GET("/subjects/stats", teacher, h.TeacherStats)
	v1.GET("/subjects/changes", h.SubjectChanges)
	v1.GET("/subjects/:id", h.GetSubject)
	v1.PATCH("/subjects/:id", teacher, h.UpdateSubject)
	v1.PUT("/subjects/:id/status", teacher, h.SetSubjectStatus)
	v1.DELETE("/subjects/:id", teacher, h.DeleteSubject)
	v1.GET("/subjects/:id/stats", h.SubjectStats)
	v1.GET("/subjects/:id/attendance", h.SubjectHistory)
	v1.GET("/subjects/:id/export", teacher, h.ExportCSV)
	v1.POST("/subjects/:id/exports", teacher, h.EnqueueExport)
	v1.GET("/exports/:id", teacher, h.ExportJob)

	v1.GET("/students", teacher, h.ListStudents)
	v1.GET("/students/by-roll", teacher, h.StudentByRoll)
	v1.GET("/students/:id", teacher, h.GetStudent)
	v1.PATCH("/students/:id", teacher, h.UpdateStudent)
	v1.DELETE("/students/:id", teacher, h.DeleteStudent)

	v1.GET("/teachers/me", teacher, h.Me)
	v1.PATCH("/teachers/me", teacher, h.UpdateMe)

	v1.POST("/attendance", teacher, h.MarkAttendance)
	v1.POST("/attendance/class", teacher, h.MarkClass)
	v1.GET("/attendance", h.ListAttendance)
}

// fail maps service errors onto status codes. Unknown errors are logged and
// answered 500 without detail.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, common.ErrUnsupportedWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": common.ErrUnauthorized.Error()})
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": common.ErrInvalidToken.Error()})
	case errors.Is(err, common.ErrDeviceNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": common.ErrDeviceNotAllowed.Error()})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": common.ErrForbidden.Error()})
	case errors.Is(err, common.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": common.ErrNoData.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": common.ErrNotFound.Error()})
	case errors.Is(err, common.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": common.ErrConflict.Error()})
	default:
		h.Log.Error(c.Request.Context(), "request failed", "method", c.Request.Method, "route", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}

// bindQuery decodes query parameters, answering 400 on malformed input.
func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		badRequest(c, "invalid query")
		return false
	}
	return true
}
