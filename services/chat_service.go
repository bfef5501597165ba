package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services/ark"
	"github.com/kindred-ai/kindred-api/services/storage"
	"gorm.io/gorm"
)

const defaultChatSystemPrompt = `You are Kindred, a warm and capable assistant. Answer the user's questions directly and honestly. When images are attached, describe and reason about what you see. Keep responses clear and conversational.`

// titleRuneLimit caps auto-generated session titles
const titleRuneLimit = 20

// chatHistoryLimit bounds how many prior messages feed a completion
const chatHistoryLimit = 20

// ChatService handles the plain (non-agent) chat surface
type ChatService struct {
	db      *gorm.DB
	client  StreamCompleter
	intents *IntentService
	pdf     *PDFExtractor
	storage *storage.Client
}

// NewChatService creates a new chat service. The storage client may be nil;
// file attachments are then rejected while image URLs still work.
func NewChatService(db *gorm.DB, client StreamCompleter, intents *IntentService, storageClient *storage.Client) *ChatService {
	return &ChatService{
		db:      db,
		client:  client,
		intents: intents,
		pdf:     NewPDFExtractor(),
		storage: storageClient,
	}
}

// Attachment references an uploaded file by its object storage key
type Attachment struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// IsImage reports whether the attachment can go into a vision turn
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// CreateSessionRequest represents a request to create a chat session
type CreateSessionRequest struct {
	UserID uint
	Title  string
}

// CreateSession creates a new chat session
func (s *ChatService) CreateSession(ctx context.Context, req CreateSessionRequest) (*model.ChatSession, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("Chat - %s", time.Now().Format("Jan 2, 2006"))
	}

	session := model.ChatSession{
		UserID: req.UserID,
		Title:  title,
		Status: "active",
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

// ListSessions returns the user's chat sessions, most recently active first
func (s *ChatService) ListSessions(ctx context.Context, userID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_message_at DESC NULLS LAST, created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// getOwnedSession loads a session and verifies ownership
func (s *ChatService) getOwnedSession(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("unauthorized: session does not belong to user")
	}
	return &session, nil
}

// SendMessageRequest represents a request to send a message
type SendMessageRequest struct {
	SessionID   uint
	UserID      uint
	Content     string
	Attachments []Attachment
}

// SendMessageResponse represents the response from sending a message
type SendMessageResponse struct {
	UserMessage      *model.ChatMessage
	AssistantMessage *model.ChatMessage
	Intent           ChatIntent
}

// SendMessage sends a message and gets a model response (non-streaming)
func (s *ChatService) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	session, err := s.getOwnedSession(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	userMessage, intent, turns, err := s.prepareTurn(ctx, session, req)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	resp, err := s.client.ChatCompletion(ctx, turns)
	if err != nil {
		return nil, fmt.Errorf("failed to get model response: %w", err)
	}
	responseTime := time.Since(startTime).Milliseconds()

	content := resp.ExtractContent()
	_, _, totalTokens := resp.GetUsage()

	assistantMessage := model.ChatMessage{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		Role:         model.MessageRoleAssistant,
		Content:      content,
		TokensUsed:   totalTokens,
		ModelUsed:    resp.Model,
		ResponseTime: int(responseTime),
		IsStreamed:   false,
		Status:       model.MessageStatusComplete,
		Metadata:     model.JSONMap{"intent": string(intent.Intent)},
	}

	if err := s.finishTurn(ctx, session, &assistantMessage, totalTokens); err != nil {
		return nil, err
	}

	return &SendMessageResponse{
		UserMessage:      userMessage,
		AssistantMessage: &assistantMessage,
		Intent:           intent.Intent,
	}, nil
}

// StreamCallbacks holds callbacks for streaming events
type StreamCallbacks struct {
	OnContent   func(chunk string) error
	OnReasoning func(chunk string) error
	OnPartial   func(info PartialMessageInfo) error
}

// PartialMessageInfo describes an assistant message cut off mid-stream
type PartialMessageInfo struct {
	MessageID      uint   `json:"message_id"`
	PartialContent string `json:"partial_content"`
	ErrorType      string `json:"error_type"`
	ErrorMessage   string `json:"error_message"`
}

// StreamMessage streams a model response chunk by chunk. When the stream is
// interrupted after some content arrived, the accumulated text is persisted
// with partial status instead of being discarded.
func (s *ChatService) StreamMessage(ctx context.Context, req SendMessageRequest, callbacks StreamCallbacks) (*SendMessageResponse, error) {
	session, err := s.getOwnedSession(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	userMessage, intent, turns, err := s.prepareTurn(ctx, session, req)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	var fullContent strings.Builder
	var fullReasoning strings.Builder
	var totalTokens int

	streamErr := s.client.StreamChatCompletion(ctx, turns, func(chunk ark.StreamChunk) error {
		if reasoning := chunk.GetReasoningContent(); reasoning != "" {
			fullReasoning.WriteString(reasoning)
			if callbacks.OnReasoning != nil {
				if err := callbacks.OnReasoning(reasoning); err != nil {
					return err
				}
			}
		}
		if content := chunk.GetContent(); content != "" {
			fullContent.WriteString(content)
			if callbacks.OnContent != nil {
				if err := callbacks.OnContent(content); err != nil {
					return err
				}
			}
		}
		if chunk.Usage != nil {
			totalTokens = chunk.Usage.TotalTokens
		}
		return nil
	})

	responseTime := time.Since(startTime).Milliseconds()

	if streamErr != nil {
		partial := fullContent.String()
		if partial == "" {
			return nil, fmt.Errorf("failed to stream model response: %w", streamErr)
		}

		errorType := "interrupted"
		if ctx.Err() != nil || strings.Contains(streamErr.Error(), "deadline") {
			errorType = "timeout"
		}
		log.Printf("[Chat] stream cut off with %d chars buffered: %v", len(partial), streamErr)

		partialMessage := model.ChatMessage{
			SessionID:    req.SessionID,
			UserID:       req.UserID,
			Role:         model.MessageRoleAssistant,
			Content:      partial,
			TokensUsed:   totalTokens,
			ResponseTime: int(responseTime),
			IsStreamed:   true,
			Metadata:     model.JSONMap{"intent": string(intent.Intent)},
		}
		if fullReasoning.Len() > 0 {
			partialMessage.Metadata["reasoning"] = fullReasoning.String()
		}
		partialMessage.MarkAsPartial(errorType, streamErr.Error())

		if err := s.finishTurn(context.WithoutCancel(ctx), session, &partialMessage, totalTokens); err != nil {
			return nil, fmt.Errorf("failed to save partial message: %w", err)
		}

		if callbacks.OnPartial != nil {
			info := PartialMessageInfo{
				MessageID:      partialMessage.ID,
				PartialContent: partial,
				ErrorType:      errorType,
				ErrorMessage:   streamErr.Error(),
			}
			if err := callbacks.OnPartial(info); err != nil {
				log.Printf("[Chat] partial callback error: %v", err)
			}
		}

		return &SendMessageResponse{
			UserMessage:      userMessage,
			AssistantMessage: &partialMessage,
			Intent:           intent.Intent,
		}, nil
	}

	assistantMessage := model.ChatMessage{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		Role:         model.MessageRoleAssistant,
		Content:      fullContent.String(),
		TokensUsed:   totalTokens,
		ResponseTime: int(responseTime),
		IsStreamed:   true,
		Status:       model.MessageStatusComplete,
		Metadata:     model.JSONMap{"intent": string(intent.Intent)},
	}
	if fullReasoning.Len() > 0 {
		assistantMessage.Metadata["reasoning"] = fullReasoning.String()
	}

	if err := s.finishTurn(ctx, session, &assistantMessage, totalTokens); err != nil {
		return nil, err
	}

	return &SendMessageResponse{
		UserMessage:      userMessage,
		AssistantMessage: &assistantMessage,
		Intent:           intent.Intent,
	}, nil
}

// prepareTurn persists the user message, classifies intent, and assembles
// the model turns. The user message commits before the model call so that
// a gateway failure never loses user input.
func (s *ChatService) prepareTurn(ctx context.Context, session *model.ChatSession, req SendMessageRequest) (*model.ChatMessage, *ChatIntentResult, []ark.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Attachments) == 0 {
		return nil, nil, nil, fmt.Errorf("message content is required")
	}

	var imageURLs []string
	var fileAttachments []Attachment
	for _, att := range req.Attachments {
		if att.IsImage() {
			imageURLs = append(imageURLs, att.URL)
		} else {
			fileAttachments = append(fileAttachments, att)
		}
	}

	userMessage := model.ChatMessage{
		SessionID: session.ID,
		UserID:    req.UserID,
		Role:      model.MessageRoleUser,
		Content:   content,
		Images:    imageURLs,
		Status:    model.MessageStatusComplete,
	}
	if err := s.db.WithContext(ctx).Create(&userMessage).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("failed to save user message: %w", err)
	}

	s.maybeAutoTitle(ctx, session, content)

	detected := s.intents.DetectChatIntent(ctx, content, len(req.Attachments) > 0)
	intent := &detected
	log.Printf("[Chat] session %d intent=%s", session.ID, intent.Intent)

	userTurn, err := s.buildUserTurn(ctx, content, intent, imageURLs, fileAttachments)
	if err != nil {
		return nil, nil, nil, err
	}

	history, err := s.loadHistory(ctx, session.ID, userMessage.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	turns := make([]ark.Message, 0, len(history)+2)
	turns = append(turns, ark.TextMessage("system", defaultChatSystemPrompt))
	turns = append(turns, history...)
	turns = append(turns, userTurn)

	return &userMessage, intent, turns, nil
}

// buildUserTurn shapes the current user message for the gateway based on the
// detected intent. Image generation is not offered on this surface; the
// intent is recorded and the request answered as normal chat.
func (s *ChatService) buildUserTurn(ctx context.Context, content string, intent *ChatIntentResult, imageURLs []string, files []Attachment) (ark.Message, error) {
	switch intent.Intent {
	case ChatIntentFileParse:
		extracted, err := s.extractAttachmentText(ctx, files)
		if err != nil {
			return ark.Message{}, err
		}
		if extracted != "" {
			combined := fmt.Sprintf("%s\n\n[Attached document content]\n%s", content, extracted)
			return ark.TextMessage("user", combined), nil
		}
		if len(imageURLs) > 0 {
			return ark.MultimodalMessage("user", content, imageURLs), nil
		}
		return ark.TextMessage("user", content), nil
	default:
		if len(imageURLs) > 0 {
			return ark.MultimodalMessage("user", content, imageURLs), nil
		}
		return ark.TextMessage("user", content), nil
	}
}

// extractAttachmentText downloads PDF attachments and extracts their text
func (s *ChatService) extractAttachmentText(ctx context.Context, files []Attachment) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	if s.storage == nil {
		return "", fmt.Errorf("file attachments are not available: object storage is not configured")
	}

	var parts []string
	for _, att := range files {
		if att.ContentType != "application/pdf" && !strings.HasSuffix(strings.ToLower(att.Filename), ".pdf") {
			log.Printf("[Chat] skipping unsupported attachment type %q (%s)", att.ContentType, att.Filename)
			continue
		}

		data, err := s.storage.DownloadFile(ctx, att.Key)
		if err != nil {
			return "", fmt.Errorf("failed to download attachment %s: %w", att.Filename, err)
		}

		text, err := s.pdf.ExtractText(data)
		if err != nil {
			log.Printf("[Chat] PDF extraction failed for %s: %v", att.Filename, err)
			continue
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", att.Filename, text))
	}

	return strings.Join(parts, "\n\n"), nil
}

// loadHistory returns prior complete messages as gateway turns, oldest first
func (s *ChatService) loadHistory(ctx context.Context, sessionID, excludeID uint) ([]ark.Message, error) {
	var history []model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND id <> ? AND status = ?", sessionID, excludeID, model.MessageStatusComplete).
		Order("created_at DESC").
		Limit(chatHistoryLimit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation history: %w", err)
	}

	// Reverse back to chronological order
	turns := make([]ark.Message, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if len(msg.Images) > 0 {
			turns = append(turns, ark.MultimodalMessage(string(msg.Role), msg.Content, msg.Images))
			continue
		}
		turns = append(turns, ark.TextMessage(string(msg.Role), msg.Content))
	}
	return turns, nil
}

// finishTurn saves the assistant message and bumps session statistics
func (s *ChatService) finishTurn(ctx context.Context, session *model.ChatSession, assistant *model.ChatMessage, totalTokens int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(assistant).Error; err != nil {
			return fmt.Errorf("failed to save assistant message: %w", err)
		}

		now := time.Now()
		if err := tx.Model(session).Updates(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + ?", 2),
			"total_tokens":    gorm.Expr("total_tokens + ?", totalTokens),
			"last_message_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
}

// maybeAutoTitle renames a freshly created session after its first message
func (s *ChatService) maybeAutoTitle(ctx context.Context, session *model.ChatSession, content string) {
	if session.MessageCount > 0 || content == "" {
		return
	}
	title := content
	if runes := []rune(title); len(runes) > titleRuneLimit {
		title = string(runes[:titleRuneLimit])
	}
	if err := s.db.WithContext(ctx).Model(session).Update("title", title).Error; err != nil {
		log.Printf("[Chat] failed to auto-title session %d: %v", session.ID, err)
	} else {
		session.Title = title
	}
}

// GetSessionMessages retrieves messages for a session with pagination
func (s *ChatService) GetSessionMessages(ctx context.Context, sessionID uint, userID uint, limit int, offset int) ([]model.ChatMessage, int64, error) {
	if _, err := s.getOwnedSession(ctx, sessionID, userID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []model.ChatMessage
	query := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, total, nil
}

// DeleteSession deletes a chat session and all its messages
func (s *ChatService) DeleteSession(ctx context.Context, sessionID uint, userID uint) error {
	session, err := s.getOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Select("Messages").Delete(session).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ArchiveSession archives a chat session
func (s *ChatService) ArchiveSession(ctx context.Context, sessionID uint, userID uint) error {
	session, err := s.getOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	session.Status = "archived"
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// UploadAttachment stores an uploaded file in object storage and returns
// its reference
func (s *ChatService) UploadAttachment(ctx context.Context, userID uint, filename string, data []byte) (*Attachment, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	contentType := storage.GetContentType(filename)
	key := storage.GenerateKey(fmt.Sprintf("chat-uploads/%d", userID), filename)

	url, err := s.storage.UploadBytes(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	return &Attachment{
		Key:         key,
		URL:         url,
		Filename:    filename,
		ContentType: contentType,
	}, nil
}
