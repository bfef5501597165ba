package agent

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/services"
	"github.com/kindred-ai/kindred-api/utils/middleware"
	"github.com/kindred-ai/kindred-api/utils/response"
)

// ClearAndSummarize handles POST /agents/:id/chat/clear-and-summarize
func (h *AgentHandler) ClearAndSummarize(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	result, err := h.memory.ClearAndSummarize(c.Context(), user, agentID)
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to consolidate conversation")
	}

	return response.Success(c, result)
}

// ListPromptHistory handles GET /agents/:id/prompt-history
func (h *AgentHandler) ListPromptHistory(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	histories, err := h.memory.ListPromptHistory(c.Context(), user, agentID)
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to list prompt history")
	}

	return response.Success(c, histories)
}

// DeleteLatestSummary handles DELETE /agents/:id/prompt-history/latest
func (h *AgentHandler) DeleteLatestSummary(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	result, err := h.memory.DeleteLatestSummary(c.Context(), user, agentID)
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		if errors.Is(err, services.ErrNoSummaryToDelete) {
			return response.NotFound(c, "No summary to delete")
		}
		return response.InternalServerError(c, "Failed to delete latest summary")
	}

	return response.Success(c, result)
}

// ListKnowledge handles GET /agents/:id/knowledge
func (h *AgentHandler) ListKnowledge(c *fiber.Ctx) error {
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

	entries, err := h.knowledge.ListByAgent(c.Context(), agentID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list knowledge entries")
	}

	return response.Success(c, entries)
}

// SearchKnowledge handles GET /agents/:id/knowledge/search?q=...
func (h *AgentHandler) SearchKnowledge(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	agentID, err := parseAgentID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid agent ID")
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return response.BadRequest(c, "Query parameter 'query' is required")
	}

	if _, err := h.agents.GetAgent(c.Context(), user, agentID); err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			return response.NotFound(c, "Agent not found")
		}
		return response.InternalServerError(c, "Failed to fetch agent")
	}

	limit := c.QueryInt("limit", services.DefaultKnowledgeLimit)
	entries := h.knowledge.SearchByQuery(c.Context(), agentID, query, limit)

	return response.Success(c, entries)
}
