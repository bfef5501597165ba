package agent

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/services"
	"github.com/kindred-ai/kindred-api/utils/middleware"
	"github.com/kindred-ai/kindred-api/utils/response"
	"github.com/kindred-ai/kindred-api/utils/validation"
)

// AgentHandler handles persona agent endpoints
type AgentHandler struct {
	agents    *services.AgentService
	batches   *services.AgentBatchService
	memory    *services.MemoryService
	knowledge *services.KnowledgeService
	validator *validation.Validator
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agents *services.AgentService, batches *services.AgentBatchService, memory *services.MemoryService, knowledge *services.KnowledgeService) *AgentHandler {
	return &AgentHandler{
		agents:    agents,
		batches:   batches,
		memory:    memory,
		knowledge: knowledge,
		validator: validation.NewValidator(),
	}
}

// CreateAgentRequest represents an agent creation request
type CreateAgentRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=100"`
	InitialPrompt string `json:"initial_prompt" validate:"required"`
}

// UpdateAgentRequest represents an agent rename request
type UpdateAgentRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// CreateAgent handles POST /agents
func (h *AgentHandler) CreateAgent(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req CreateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	agent, err := h.agents.CreateAgent(c.Context(), user, req.Name, req.InitialPrompt)
	if err != nil {
		return response.InternalServerError(c, "Failed to create agent")
	}

	return response.Created(c, agent)
}

// ListAgents handles GET /agents
func (h *AgentHandler) ListAgents(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 20)

	agents, err := h.agents.ListAgents(c.Context(), user, offset, limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list agents")
	}

	return response.Success(c, agents)
}

// GetAgent handles GET /agents/:id
func (h *AgentHandler) GetAgent(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	agent, err := h.agents.GetAgent(c.Context(), user, agentID)
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to fetch agent")
	}

	return response.Success(c, agent)
}

// UpdateAgent handles PUT /agents/:id
func (h *AgentHandler) UpdateAgent(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	var req UpdateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	agent, err := h.agents.UpdateAgentName(c.Context(), user, agentID, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to update agent")
	}

	return response.Success(c, agent)
}

// DeleteAgent handles DELETE /agents/:id
func (h *AgentHandler) DeleteAgent(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	if err := h.agents.DeleteAgent(c.Context(), user, agentID); err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to delete agent")
	}

	return response.Success(c, fiber.Map{
		"message": "Agent deleted successfully",
	})
}

// parseAgentID extracts the :id path parameter
func parseAgentID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}
