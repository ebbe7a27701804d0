package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
	"rollcall/internal/roster"
	"rollcall/internal/session"
)

// ---------- Devices ----------

func (h *Handler) RegisterDevice(c *gin.Context) {
	if h.Devices == nil {
		unavailable(c, "device registry")
		return
	}
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	first, err := h.Devices.Register(c.Request.Context(), req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"first_launch": first})
}

// ---------- Registration ----------

func (h *Handler) RegisterStudent(c *gin.Context) {
	var req roster.NewStudent
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.Roster.RegisterStudent(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) RegisterTeacher(c *gin.Context) {
	var req roster.NewTeacher
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.Roster.RegisterTeacher(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ---------- Session ----------

type signInRequest struct {
	Role string `json:"role"`
	session.Credentials
}

// SignIn opens a session. The role picks which credentials are checked.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Role != session.RoleTeacher && req.Role != session.RoleStudent {
		badRequest(c, "role must be teacher or student")
		return
	}
	res, err := h.Sessions.SignIn(c.Request.Context(), req.Role, req.Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.RefreshToken == "" {
		badRequest(c, "refresh_token is required")
		return
	}
	tokens, err := h.Sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) CurrentSession(c *gin.Context) {
	token, _ := auth.BearerToken(c.GetHeader("Authorization"))
	s, err := h.Sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) SignOut(c *gin.Context) {
	token, _ := auth.BearerToken(c.GetHeader("Authorization"))
	if err := h.Sessions.SignOut(c.Request.Context(), token); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
