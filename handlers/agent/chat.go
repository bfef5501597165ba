package agent

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/services"
	"github.com/kindred-ai/kindred-api/utils/middleware"
	"github.com/kindred-ai/kindred-api/utils/response"
)

// BatchMessageRequest carries a burst of user messages for one model call
type BatchMessageRequest struct {
	Messages []string `json:"messages" validate:"required"`
}

// GetChat handles GET /agents/:id/chat, returning the agent's session and
// its messages
func (h *AgentHandler) GetChat(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	if _, err := h.agents.GetAgent(c.Context(), user, agentID); err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to fetch agent")
	}

	session, err := h.agents.GetOrCreateSession(c.Context(), agentID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load chat session")
	}

	messages, err := h.agents.GetSessionMessages(c.Context(), session.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load messages")
	}

	return response.Success(c, fiber.Map{
		"session":  session,
		"messages": messages,
	})
}

// SendBatch handles POST /agents/:id/chat/messages/batch
func (h *AgentHandler) SendBatch(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	var req BatchMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.batches.SendBatch(c.Context(), user, agentID, req.Messages)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAgentNotFound):
			return response.NotFound(c, "Agent not found")
		case errors.Is(err, services.ErrEmptyBatch),
			errors.Is(err, services.ErrTooManyMessages),
			errors.Is(err, services.ErrAllMessagesBlank),
			errors.Is(err, services.ErrMessageTooLong):
			return response.BadRequest(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to process message batch")
		}
	}

	return response.Success(c, result)
}
