package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"impactflow/api/internal/models"
	"impactflow/api/internal/service"
)

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	EventID     string     `json:"eventId" binding:"required"`
	AssignedTo  string     `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
}

func (h HandlerSet) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		EventID:     req.EventID,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h HandlerSet) EventTasks(c *gin.Context) {
	tasks, err := h.tasks.ByEvent(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h HandlerSet) MyTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tasks, err := h.tasks.ByAssignee(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

type setTaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Pending 'In Progress' Completed"`
}

func (h HandlerSet) SetTaskStatus(c *gin.Context) {
	var req setTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.SetStatus(c.Request.Context(), c.Param("id"), models.TaskStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}
