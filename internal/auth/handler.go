package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/database"
	"github.com/raven-chat/backend/pkg/response"
	"github.com/raven-chat/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), email, hash, req.FullName)
	if database.IsUniqueViolation(err) {
		response.Conflict(c, "email already registered")
		return
	}
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("generate token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.logger.Error("load user", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("generate token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}
