package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
	"rollcall/internal/subjects"
)

// ---------- Subjects ----------

func (h *Handler) ListSubjects(c *gin.Context) {
	var f subjects.Filter
	if !bindQuery(c, &f) {
		return
	}
	list, err := h.Subjects.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []subjects.Subject{}
	}
	c.JSON(http.StatusOK, gin.H{"subjects": list})
}

func (h *Handler) GetSubject(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	s, err := h.Subjects.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) CreateSubject(c *gin.Context) {
	var req subjects.NewSubject
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Subjects.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateSubject(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req subjects.Update
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Subjects.Update(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) SetSubjectStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Subjects.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSubject(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Subjects.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Statistics ----------

func (h *Handler) SubjectStats(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if _, err := h.Subjects.Get(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	st, err := h.Attendance.Stats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject_id": id, "stats": st})
}

// TeacherStats computes statistics for every subject of the signed-in
// teacher's course and semester. A failing subject carries its error in the
// result instead of failing the request.
func (h *Handler) TeacherStats(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	ctx := c.Request.Context()

	t, err := h.Roster.Teacher(ctx, p.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.Subjects.List(ctx, subjects.Filter{Course: t.Course, Semester: t.Semester})
	if err != nil {
		h.fail(c, err)
		return
	}
	ids := make([]int64, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	c.JSON(http.StatusOK, gin.H{"stats": h.Attendance.StatsForSubjects(ctx, ids)})
}
