package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
	"rollcall/internal/roster"
)

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	var f roster.Filter
	if !bindQuery(c, &f) {
		return
	}
	list, err := h.Roster.ListStudents(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []roster.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

// StudentByRoll finds one student by roll number and course, optionally
// narrowed by semester.
func (h *Handler) StudentByRoll(c *gin.Context) {
	var q struct {
		Roll     int    `form:"roll"`
		Course   string `form:"course"`
		Semester int    `form:"semester"`
	}
	if !bindQuery(c, &q) {
		return
	}
	if q.Roll <= 0 || q.Course == "" {
		badRequest(c, "roll and course are required")
		return
	}
	st, err := h.Roster.StudentByRoll(c.Request.Context(), q.Roll, q.Course, q.Semester)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	st, err := h.Roster.Student(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req roster.StudentUpdate
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.Roster.UpdateStudent(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Roster.DeleteStudent(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Teachers ----------

func (h *Handler) Me(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	t, err := h.Roster.Teacher(c.Request.Context(), p.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var req roster.TeacherUpdate
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.Roster.UpdateTeacher(c.Request.Context(), p.UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
