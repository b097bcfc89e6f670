package handler

import (
	"net/http"
	"strings"

	"dispatch-server/internal/apierrors"
	"dispatch-server/internal/auth/processor"
	"dispatch-server/internal/observability"

	"github.com/gin-gonic/gin"
)

// Handler handles authentication HTTP requests
type Handler struct {
	processor *processor.AuthProcessor
	logger    *observability.Logger
}

// New creates a new Handler
func New(processor *processor.AuthProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// LoginRequest represents an operator login request
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// HandleLogin handles POST /api/auth/login
func (h *Handler) HandleLogin(c *gin.Context) {
	ctx := c.Request.Context()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	token, err := h.processor.Login(ctx, req.Password)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// HandleJWTMiddleware validates the bearer token on protected routes
func (h *Handler) HandleJWTMiddleware(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		apierrors.RespondWithError(c, apierrors.Unauthorized("missing authorization header"))
		c.Abort()
		return
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		apierrors.RespondWithError(c, apierrors.Unauthorized("authorization header must be a bearer token"))
		c.Abort()
		return
	}

	if err := h.processor.ValidateToken(tokenString); err != nil {
		apierrors.RespondWithError(c, err)
		c.Abort()
		return
	}

	c.Next()
}
