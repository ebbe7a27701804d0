package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAlive is how often an idle change stream sends a comment line.
var keepAlive = 25 * time.Second

// SubjectChanges streams subject status changes as server-sent events until
// the client goes away.
func (h *Handler) SubjectChanges(c *gin.Context) {
	if h.Changes == nil {
		unavailable(c, "change notifications")
		return
	}
	ctx := c.Request.Context()
	events, cancel, err := h.Changes.Subscribe(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("subject", evt)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		}
	})
}
