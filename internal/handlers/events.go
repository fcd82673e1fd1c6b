package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"impactflow/api/internal/service"
	"impactflow/api/internal/store"
)

func (h HandlerSet) ListEvents(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h HandlerSet) GetEvent(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

type createEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	Category    string    `json:"category" binding:"omitempty,oneof=Community Environment Education Health Animals"`
	Image       string    `json:"image"`
	Budget      float64   `json:"budget"`
}

func (h HandlerSet) CreateEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.Create(c.Request.Context(), user.ID, service.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
		Category:    req.Category,
		Image:       req.Image,
		Budget:      req.Budget,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

type updateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	Location    *string    `json:"location"`
	Category    *string    `json:"category"`
	Image       *string    `json:"image"`
	Budget      *float64   `json:"budget"`
	Status      *string    `json:"status" binding:"omitempty,oneof=upcoming ongoing completed cancelled"`
}

func (h HandlerSet) UpdateEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	partial := store.Predicate{}
	if req.Title != nil {
		partial["title"] = *req.Title
	}
	if req.Description != nil {
		partial["description"] = *req.Description
	}
	if req.Date != nil {
		partial["date"] = *req.Date
	}
	if req.Location != nil {
		partial["location"] = *req.Location
	}
	if req.Category != nil {
		partial["category"] = *req.Category
	}
	if req.Image != nil {
		partial["image"] = *req.Image
	}
	if req.Budget != nil {
		partial["budget"] = *req.Budget
	}
	if req.Status != nil {
		partial["status"] = *req.Status
	}

	event, err := h.events.Update(c.Request.Context(), user.ID, user.Role, c.Param("id"), partial)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h HandlerSet) DeleteEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.events.Delete(c.Request.Context(), user.ID, user.Role, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event removed"})
}

func (h HandlerSet) EventVolunteers(c *gin.Context) {
	volunteers, err := h.events.Volunteers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, volunteers)
}
