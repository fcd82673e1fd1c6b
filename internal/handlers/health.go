package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports process liveness and which persistence backend is active.
func (h HandlerSet) Health(c *gin.Context) {
	backend := "file"
	if h.sel.Live() {
		backend = "mongo"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"environment": h.cfg.Environment,
		"database": gin.H{
			"mongo":  h.sel.Live(),
			"active": backend,
		},
	})
}
