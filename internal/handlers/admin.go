package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) ListPendingAdmins(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pending, err := h.accounts.ListPendingAdmins(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pendingAdmins": pending})
}

func (h HandlerSet) ApproveAdmin(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	targetID := c.Param("userId")
	view, err := h.accounts.Approve(c.Request.Context(), user.ID, targetID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Admin request approved",
		"user":    view,
	})
}

func (h HandlerSet) RejectAdmin(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	targetID := c.Param("userId")
	view, err := h.accounts.Reject(c.Request.Context(), user.ID, targetID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Admin request rejected, account demoted to volunteer",
		"user":    view,
	})
}
