package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) JoinEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.events.Join(c.Request.Context(), user.ID, c.Param("eventId")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Joined event"})
}

func (h HandlerSet) MyEvents(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	events, err := h.events.JoinedEvents(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// AllVolunteers lists every registered account for the admin roster view.
func (h HandlerSet) AllVolunteers(c *gin.Context) {
	accounts, err := h.accounts.ListAccounts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}
