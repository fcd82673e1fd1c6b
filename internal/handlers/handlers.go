package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"impactflow/api/internal/config"
	"impactflow/api/internal/mail"
	"impactflow/api/internal/middleware"
	"impactflow/api/internal/models"
	"impactflow/api/internal/service"
	"impactflow/api/internal/store"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	gw       *store.Gateway
	sel      *store.Selector
	accounts *service.AccountService
	events   *service.EventService
	tasks    *service.TaskService
	sender   mail.Sender
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	gw *store.Gateway,
	sel *store.Selector,
	accounts *service.AccountService,
	events *service.EventService,
	tasks *service.TaskService,
	sender mail.Sender,
) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		gw:       gw,
		sel:      sel,
		accounts: accounts,
		events:   events,
		tasks:    tasks,
		sender:   sender,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authed := middleware.Auth(h.cfg.Security, h.gw.Users)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterAccount)
		auth.POST("/verify", h.VerifyCode)
		auth.POST("/resend-code", h.ResendCode)
		auth.POST("/login", h.Login)
		auth.PUT("/profile", authed, h.UpdateProfile)

		admin := auth.Group("/admin", authed)
		admin.GET("/pending", h.ListPendingAdmins)
		admin.PUT("/approve/:userId", h.ApproveAdmin)
		admin.PUT("/reject/:userId", h.RejectAdmin)
	}

	events := router.Group("/events")
	{
		events.GET("", h.ListEvents)
		events.GET("/:id", h.GetEvent)
		events.GET("/:id/volunteers", authed, h.EventVolunteers)
		events.POST("", authed, h.CreateEvent)
		events.PUT("/:id", authed, h.UpdateEvent)
		events.DELETE("/:id", authed, h.DeleteEvent)
	}

	tasks := router.Group("/tasks", authed)
	{
		tasks.POST("", h.CreateTask)
		tasks.GET("/event/:eventId", h.EventTasks)
		tasks.GET("/my-tasks", h.MyTasks)
		tasks.PATCH("/:id/status", h.SetTaskStatus)
	}

	volunteers := router.Group("/volunteers", authed)
	{
		volunteers.GET("/all", adminOnly, h.AllVolunteers)
		volunteers.GET("/my-events", h.MyEvents)
		volunteers.POST("/:eventId/join", h.JoinEvent)
	}

	router.GET("/stats/dashboard", authed, adminOnly, h.DashboardStats)

	router.POST("/contact", h.SubmitContact)
	router.GET("/contact", authed, adminOnly, h.ListContacts)
}

// fail maps service errors to status classes. Unexpected failures are logged
// with context and surfaced opaquely.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		c.JSON(status, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func currentUser(c *gin.Context) (models.User, bool) {
	return middleware.CurrentUser(c)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDuplicateAccount),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOrExpiredCode),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrAlreadyVolunteered):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotVerified),
		errors.Is(err, service.ErrPendingApproval),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnknownAccount),
		errors.Is(err, service.ErrUnknownEvent),
		errors.Is(err, service.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
