package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/session"
)

// ---------- Attendance ----------

func (h *Handler) MarkAttendance(c *gin.Context) {
	var req attendance.MarkRequest
	if !bindJSON(c, &req) {
		return
	}
	recs, err := h.Attendance.Mark(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (h *Handler) MarkClass(c *gin.Context) {
	var req attendance.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	recs, err := h.Attendance.MarkClass(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

// ListAttendance filters records by query. Students only ever see their own.
func (h *Handler) ListAttendance(c *gin.Context) {
	var f attendance.Filter
	if !bindQuery(c, &f) {
		return
	}
	if p, _ := auth.PrincipalFrom(c); p.Role == session.RoleStudent {
		f.StudentID = p.UserID
	}
	recs, err := h.Attendance.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (h *Handler) SubjectHistory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var studentID int64
	if p, _ := auth.PrincipalFrom(c); p.Role == session.RoleStudent {
		studentID = p.UserID
	}
	recs, err := h.Attendance.History(c.Request.Context(), id, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}
