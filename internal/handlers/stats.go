package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"impactflow/api/internal/store"
)

// DashboardStats aggregates the headline counts for the admin dashboard.
func (h HandlerSet) DashboardStats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.gw.Users.Find(ctx, store.Predicate{})
	if err != nil {
		h.fail(c, err)
		return
	}
	events, err := h.gw.Events.Find(ctx, store.Predicate{})
	if err != nil {
		h.fail(c, err)
		return
	}
	tasks, err := h.gw.Tasks.Find(ctx, store.Predicate{})
	if err != nil {
		h.fail(c, err)
		return
	}

	volunteers := map[string]struct{}{}
	for _, ev := range events {
		for _, id := range ev.Volunteers {
			volunteers[id] = struct{}{}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"totalUsers":       len(users),
		"totalEvents":      len(events),
		"totalTasks":       len(tasks),
		"activeVolunteers": len(volunteers),
	})
}
