package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"impactflow/api/internal/service"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"omitempty,oneof=volunteer coordinator admin"`
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     req.Role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	message := "Registration successful! Check your email for the verification code."
	if result.RequiresApproval {
		message = "Registration successful! Verify your email, then wait for an existing admin to approve your request."
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":          message,
		"requiresApproval": result.RequiresApproval,
	})
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

func (h HandlerSet) VerifyCode(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.accounts.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}

	if result.RequiresApproval {
		c.JSON(http.StatusOK, gin.H{
			"message":          "Email verified. Your admin request is pending approval.",
			"requiresApproval": true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  result.Account,
	})
}

type resendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) ResendCode(c *gin.Context) {
	var req resendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accounts.ResendCode(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "A new verification code has been sent."})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  result.Account,
	})
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Image *string `json:"image"`
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.accounts.UpdateProfile(c.Request.Context(), user.ID, service.UpdateProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
		Image: req.Image,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": view})
}
