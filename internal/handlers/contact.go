package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"impactflow/api/internal/mail"
	"impactflow/api/internal/models"
	"impactflow/api/internal/store"
)

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

func (h HandlerSet) SubmitContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.gw.Contacts.Create(c.Request.Context(), models.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.cfg.SMTP.AdminEmail != "" {
		// Notification is best effort, the message is already persisted.
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		msg := mail.BuildContactNotification(h.cfg.SMTP.AdminEmail, req.Name, req.Email, req.Message)
		if err := h.sender.Send(ctx, msg); err != nil {
			h.log.Warn().Err(err).Str("contact_id", saved.ID).Msg("contact notification not delivered")
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Message received"})
}

func (h HandlerSet) ListContacts(c *gin.Context) {
	messages, err := h.gw.Contacts.Find(c.Request.Context(), store.Predicate{})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
