package services

import (
	"context"
	"testing"

	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services/ark"
	"gorm.io/gorm"
)

// droppedStreamer emits a few content chunks, cancels the caller's context
// to mimic a client disconnect, and reports the cancellation as the stream
// error.
type droppedStreamer struct {
	queuedCompleter
	chunks []string
	cancel context.CancelFunc
}

func (d *droppedStreamer) StreamChatCompletion(ctx context.Context, messages []ark.Message, callback func(ark.StreamChunk) error, options ...ark.Option) error {
	for _, content := range d.chunks {
		chunk := ark.StreamChunk{
			Choices: []ark.StreamChunkChoice{
				{Delta: ark.StreamChunkDelta{Content: content}},
			},
		}
		if err := callback(chunk); err != nil {
			return err
		}
	}
	d.cancel()
	return ctx.Err()
}

func openChatIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := openIntegrationDB(t)
	err := db.AutoMigrate(
		&model.ChatSession{},
		&model.ChatMessage{},
	)
	if err != nil {
		t.Fatalf("failed to migrate chat tables: %v", err)
	}
	return db
}

// TestStreamMessagePersistsPartialOnDisconnect verifies that when the client
// context is cancelled mid-stream, the buffered content is still written to
// the database instead of being lost with the cancelled context.
func TestStreamMessagePersistsPartialOnDisconnect(t *testing.T) {
	db := openChatIntegrationDB(t)

	user := model.User{Email: "stream@test.local", PasswordHash: "x", Name: "Stream"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.ChatMessage{})
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.ChatSession{})
		db.Unscoped().Delete(&user)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamer := &droppedStreamer{
		queuedCompleter: queuedCompleter{responses: []string{
			`{"intent": "NORMAL_CHAT", "confidence": 0.9, "reason": "greeting"}`,
		}},
		chunks: []string{"Hello, fr"},
		cancel: cancel,
	}
	intents := NewIntentService(streamer, "test-lite", DefaultLexicon())
	chats := NewChatService(db, streamer, intents, nil)

	session, err := chats.CreateSession(ctx, CreateSessionRequest{UserID: user.ID, Title: "stream test"})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	var partialInfo *PartialMessageInfo
	result, err := chats.StreamMessage(ctx, SendMessageRequest{
		SessionID: session.ID,
		UserID:    user.ID,
		Content:   "hello there",
	}, StreamCallbacks{
		OnPartial: func(info PartialMessageInfo) error {
			partialInfo = &info
			return nil
		},
	})
	if err != nil {
		t.Fatalf("interrupted stream with buffered content must not fail: %v", err)
	}

	if result.AssistantMessage.Status != model.MessageStatusPartial {
		t.Errorf("status = %q, want partial", result.AssistantMessage.Status)
	}
	if result.AssistantMessage.Content != "Hello, fr" {
		t.Errorf("content = %q, want the buffered text", result.AssistantMessage.Content)
	}
	if partialInfo == nil {
		t.Fatal("expected the partial callback to fire")
	}
	if partialInfo.ErrorType != "timeout" {
		t.Errorf("error type = %q, want timeout for a cancelled context", partialInfo.ErrorType)
	}

	// The cancelled context must not block the write
	var saved model.ChatMessage
	if err := db.First(&saved, result.AssistantMessage.ID).Error; err != nil {
		t.Fatalf("partial message was not persisted: %v", err)
	}
	if saved.Status != model.MessageStatusPartial {
		t.Errorf("persisted status = %q, want partial", saved.Status)
	}
}
