package channels

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raven-chat/backend/internal/middleware"
	"github.com/raven-chat/backend/internal/models"
	"github.com/raven-chat/backend/pkg/response"
)

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateRequest is the body for POST /channels.
type CreateRequest struct {
	Name      string `json:"name" binding:"required"`
	IsPrivate bool   `json:"is_private"`
}

// Handler handles channel HTTP endpoints.
type Handler struct {
	repo   *Repository
	tx     Transactor
	logger *zap.Logger
}

// NewHandler creates a channels handler.
func NewHandler(repo *Repository, tx Transactor, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, tx: tx, logger: logger}
}

// Create handles POST /channels. The creator becomes the first member.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name must not be blank")
		return
	}

	ch := &models.Channel{Name: name, IsPrivate: req.IsPrivate, CreatedBy: userID}
	err := h.tx.WithinTx(c.Request.Context(), func(ctx context.Context) error {
		if err := h.repo.Create(ctx, ch); err != nil {
			return err
		}
		return h.repo.AddMember(ctx, ch.ID, userID)
	})
	if err != nil {
		h.logger.Error("create channel", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to create channel")
		return
	}
	response.Created(c, ch)
}
