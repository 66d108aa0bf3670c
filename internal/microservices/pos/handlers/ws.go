package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/microservices/notificator/hub"
)

func (h *Handler) KitchenSocket(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request, hub.KitchenTopic())
}

// SessionSocket subscribes to one session's events. Unknown sessions are
// refused before the upgrade.
func (h *Handler) SessionSocket(c *gin.Context) {
	id := c.Param("sessionId")
	if _, err := h.sessions.GetSession(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.hub.ServeHTTP(c.Writer, c.Request, hub.SessionTopic(id))
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		writeProblem(c, http.StatusServiceUnavailable, "db_unreachable", err.Error(), nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
