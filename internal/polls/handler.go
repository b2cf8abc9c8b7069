package polls

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raven-chat/backend/internal/middleware"
	"github.com/raven-chat/backend/pkg/database"
	"github.com/raven-chat/backend/pkg/response"
)

// VoteConfirmation is returned by a successful vote.
const VoteConfirmation = "Vote added successfully."

// CreateRequest is the body for POST /channels/:id/polls.
type CreateRequest struct {
	Question      string   `json:"question" binding:"required"`
	Options       []string `json:"options" binding:"required,min=1"`
	IsMultiChoice bool     `json:"is_multi_choice"`
	IsAnonymous   bool     `json:"is_anonymous"`
}

// VoteRequest is the body for POST /messages/:id/poll/votes.
// OptionID is a single option id, or an array of ids for multi-choice polls.
type VoteRequest struct {
	OptionID json.RawMessage `json:"option_id" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /channels/:id/polls.
func (h *Handler) Create(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid channel id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.svc.CreatePoll(c.Request.Context(), CreateInput{
		ChannelID:     channelID,
		Question:      req.Question,
		Options:       req.Options,
		IsMultiChoice: req.IsMultiChoice,
		IsAnonymous:   req.IsAnonymous,
	}, userID)
	if err != nil {
		h.fail(c, err, "create poll")
		return
	}
	response.Created(c, res)
}

// Get handles GET /messages/:id/poll.
func (h *Handler) Get(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	view, err := h.svc.GetPoll(c.Request.Context(), messageID, userID)
	if err != nil {
		h.fail(c, err, "get poll")
		return
	}
	response.OK(c, view)
}

// Vote handles POST /messages/:id/poll/votes.
func (h *Handler) Vote(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	optionIDs, err := parseOptionIDs(req.OptionID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.AddVote(c.Request.Context(), messageID, optionIDs, userID); err != nil {
		h.fail(c, err, "add vote")
		return
	}
	response.OK(c, gin.H{"message": VoteConfirmation})
}

// Voters handles GET /messages/:id/poll/voters.
func (h *Handler) Voters(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.svc.ListVoters(c.Request.Context(), messageID, userID)
	if err != nil {
		h.fail(c, err, "list voters")
		return
	}
	response.OK(c, gin.H{"options": list})
}

func (h *Handler) fail(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidPoll), errors.Is(err, ErrInvalidOption):
		response.BadRequest(c, err.Error())
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, ErrNotPoll):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrDuplicateVote), errors.Is(err, ErrAnonymousPoll):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error(action, zap.Error(err), zap.String("path", c.Request.URL.Path))
		response.Internal(c, "failed to "+action)
	}
}

// parseOptionIDs accepts `"<id>"` or `["<id>", ...]`.
func parseOptionIDs(raw json.RawMessage) ([]uuid.UUID, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		id, err := uuid.Parse(single)
		if err != nil {
			return nil, fmt.Errorf("invalid option id %q", single)
		}
		return []uuid.UUID{id}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errors.New("option_id must be a string or an array of strings")
	}
	ids := make([]uuid.UUID, 0, len(many))
	for _, s := range many {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid option id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
