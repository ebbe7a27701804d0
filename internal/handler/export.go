package handler

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/export"
)

// ---------- Export ----------

func (h *Handler) exportRequest(c *gin.Context) (export.Request, bool) {
	id, ok := paramID(c)
	if !ok {
		return export.Request{}, false
	}
	w, err := export.ParseWindow(c.Query("window"))
	if err != nil {
		h.fail(c, err)
		return export.Request{}, false
	}
	at, err := export.ParseAt(c.Query("at"), h.Location)
	if err != nil {
		h.fail(c, err)
		return export.Request{}, false
	}
	return export.Request{SubjectID: id, Window: w, At: at}, true
}

// ExportCSV renders the export synchronously and sends it as a download.
func (h *Handler) ExportCSV(c *gin.Context) {
	req, ok := h.exportRequest(c)
	if !ok {
		return
	}
	rep, err := h.Reports.Build(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rep.FileName}))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", rep.Data)
}

// EnqueueExport hands the export to the worker and answers with the job to poll.
func (h *Handler) EnqueueExport(c *gin.Context) {
	if h.Exports == nil {
		unavailable(c, "export queue")
		return
	}
	req, ok := h.exportRequest(c)
	if !ok {
		return
	}
	job, err := h.Exports.Enqueue(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/v1/exports/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) ExportJob(c *gin.Context) {
	if h.Exports == nil {
		unavailable(c, "export queue")
		return
	}
	job, err := h.Exports.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
