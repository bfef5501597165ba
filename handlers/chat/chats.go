package chat

import (
	"bufio"
	"context"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services"
	"github.com/kindred-ai/kindred-api/utils/middleware"
	"github.com/kindred-ai/kindred-api/utils/response"
	"github.com/kindred-ai/kindred-api/utils/sse"
	"github.com/kindred-ai/kindred-api/utils/validation"
	"gorm.io/gorm"
)

const maxUploadBytes = 10 << 20 // 10 MB

// ChatHandler handles chat-related requests
type ChatHandler struct {
	db          *gorm.DB
	validator   *validation.Validator
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db *gorm.DB, chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		db:          db,
		validator:   validation.NewValidator(),
		chatService: chatService,
	}
}

// CreateSessionRequest represents the request to create a chat session
type CreateSessionRequest struct {
	Title string `json:"title" validate:"omitempty,max=255"`
}

// AttachmentRequest references a previously uploaded file
type AttachmentRequest struct {
	Key         string `json:"key" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

// SendMessageRequest represents the request to send a chat message
type SendMessageRequest struct {
	Content     string              `json:"content" validate:"omitempty,max=10000"`
	Stream      bool                `json:"stream" validate:"omitempty"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,max=5,dive"`
}

// ListSessions handles GET /api/v1/chat/sessions
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessions, err := h.chatService.ListSessions(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch sessions")
	}

	return response.Success(c, sessions)
}

// GetSession handles GET /api/v1/chat/sessions/:id
func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	var session model.ChatSession
	if err := h.db.Where("id = ? AND user_id = ?", sessionID, user.ID).
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to fetch session")
	}

	return response.Success(c, session)
}

// CreateSession handles POST /api/v1/chat/sessions
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	session, err := h.chatService.CreateSession(c.Context(), services.CreateSessionRequest{
		UserID: user.ID,
		Title:  req.Title,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to create session: "+err.Error())
	}

	return response.Created(c, session)
}

// DeleteSession handles DELETE /api/v1/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	if err := h.chatService.DeleteSession(c.Context(), sessionID, user.ID); err != nil {
		return sessionError(c, err)
	}

	return response.Success(c, fiber.Map{
		"message": "Session deleted successfully",
	})
}

// ArchiveSession handles POST /api/v1/chat/sessions/:id/archive
func (h *ChatHandler) ArchiveSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	if err := h.chatService.ArchiveSession(c.Context(), sessionID, user.ID); err != nil {
		return sessionError(c, err)
	}

	return response.Success(c, fiber.Map{
		"message": "Session archived successfully",
	})
}

// GetMessages handles GET /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	sessionID, err := parseSessionID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	offset := (page - 1) * limit
	messages, total, err := h.chatService.GetSessionMessages(c.Context(), sessionID, user.ID, limit, offset)
	if err != nil {
		return sessionError(c, err)
	}

	pagination := response.CalculatePagination(page, limit, total)

	return response.Paginated(c, messages, pagination)
}

// SendMessage handles POST /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.Content == "" && len(req.Attachments) == 0 {
		return response.BadRequest(c, "Message content or attachments are required")
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	attachments := make([]services.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, services.Attachment{
			Key:         a.Key,
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
		})
	}

	serviceReq := services.SendMessageRequest{
		SessionID:   sessionID,
		UserID:      user.ID,
		Content:     req.Content,
		Attachments: attachments,
	}

	if req.Stream {
		return h.handleStreamMessage(c, serviceReq)
	}

	result, err := h.chatService.SendMessage(c.Context(), serviceReq)
	if err != nil {
		return sessionError(c, err)
	}

	return response.Created(c, fiber.Map{
		"user_message":      result.UserMessage,
		"assistant_message": result.AssistantMessage,
		"intent":            result.Intent,
	})
}

// handleStreamMessage streams the assistant reply as server-sent events
func (h *ChatHandler) handleStreamMessage(c *fiber.Ctx, req services.SendMessageRequest) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// Use background context for operations inside stream writer
		// The Fiber context (c.Context()) is not valid inside the goroutine
		ctx := context.Background()

		sse.SendStart(w)

		callbacks := services.StreamCallbacks{
			OnContent: func(chunk string) error {
				return sse.SendChunk(w, chunk)
			},
			OnReasoning: func(chunk string) error {
				return sse.SendReasoning(w, chunk)
			},
			OnPartial: func(info services.PartialMessageInfo) error {
				return sse.Send(w, sse.Event{Event: "partial", Data: info})
			},
		}

		result, err := h.chatService.StreamMessage(ctx, req, callbacks)
		if err != nil {
			sse.SendError(w, err)
			return
		}

		sse.SendDone(w, fiber.Map{
			"user_message_id":      result.UserMessage.ID,
			"assistant_message_id": result.AssistantMessage.ID,
			"intent":               result.Intent,
		})
	})

	return nil
}

// UploadAttachment handles POST /api/v1/chat/uploads
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "File is required")
	}

	if fileHeader.Size > maxUploadBytes {
		return response.BadRequest(c, "File exceeds the maximum upload size")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}

	attachment, err := h.chatService.UploadAttachment(c.Context(), user.ID, fileHeader.Filename, data)
	if err != nil {
		return response.InternalServerError(c, "Failed to upload file: "+err.Error())
	}

	return response.Created(c, attachment)
}

// parseSessionID reads the :id route parameter
func parseSessionID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// sessionError maps service errors onto HTTP responses
func sessionError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	switch {
	case msg == "session not found":
		return response.NotFound(c, "Session not found")
	case msg == "unauthorized: session does not belong to user":
		return response.Forbidden(c, "Session does not belong to user")
	default:
		return response.InternalServerError(c, msg)
	}
}
