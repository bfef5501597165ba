package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services/ark"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queuedCompleter replays scripted responses in order
type queuedCompleter struct {
	responses []string
	next      int
}

func (f *queuedCompleter) ChatCompletion(ctx context.Context, messages []ark.Message, options ...ark.Option) (*ark.Response, error) {
	content := f.responses[len(f.responses)-1]
	if f.next < len(f.responses) {
		content = f.responses[f.next]
		f.next++
	}
	return &ark.Response{
		Choices: []ark.Choice{
			{Message: ark.ResponseMessage{Role: "assistant", Content: content}},
		},
		Usage: ark.Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Agent{},
		&model.AgentChatSession{},
		&model.AgentChatMessage{},
		&model.AgentPromptHistory{},
		&model.AgentKnowledgeIndex{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

// TestAgentBatchLifecycle runs the full loop on a real database: create an
// agent, send a batch, consolidate the session into memory, query the
// knowledge index, then undo the consolidation.
func TestAgentBatchLifecycle(t *testing.T) {
	db := openIntegrationDB(t)

	user := model.User{Email: "lifecycle@test.local", PasswordHash: "x", Name: "Lifecycle"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Select("Agents").Delete(&user)
	})

	lexicon := DefaultLexicon()

	agents := NewAgentService(db)
	const initialPrompt = "You are Momo, a cheerful companion."
	agent, err := agents.CreateAgent(context.Background(), &user, "Momo", initialPrompt)
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	if agent.CurrentPrompt != initialPrompt {
		t.Errorf("fresh agent prompt = %q, want the initial prompt", agent.CurrentPrompt)
	}

	// Call order: intent classification, then the reply batch
	batchClient := &queuedCompleter{responses: []string{
		`{"intent": "NORMAL_CHAT", "confidence": 0.9, "reason": "greeting"}`,
		`{"replies": [{"content": "Hi!", "send_delay_seconds": 0}, {"content": "I missed you!", "send_delay_seconds": 3}]}`,
	}}
	intents := NewIntentService(batchClient, "test-lite", lexicon)
	knowledge := NewKnowledgeService(db, lexicon)
	batches := NewAgentBatchService(db, intents, knowledge, batchClient)

	result, err := batches.SendBatch(context.Background(), &user, agent.ID, []string{"hey Momo", "how are you?"})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(result.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(result.Replies))
	}
	if result.Replies[0].SendDelaySeconds != 0 {
		t.Errorf("first reply must be immediate")
	}

	session, err := agents.GetOrCreateSession(context.Background(), agent.ID)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	messages, err := agents.GetSessionMessages(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	// 2 user messages + 2 replies
	if len(messages) != 4 {
		t.Fatalf("expected 4 persisted messages, got %d", len(messages))
	}

	// Consolidate the session
	memoryClient := &queuedCompleter{responses: []string{
		`{"summary": "Today my friend greeted me warmly.", "topics": ["greeting"], "key_points": ["warm welcome"], "keywords": ["greeting"], "impact": "I feel appreciated."}`,
	}}
	memory := NewMemoryService(db, memoryClient)

	consolidation, err := memory.ClearAndSummarize(context.Background(), &user, agent.ID)
	if err != nil {
		t.Fatalf("consolidation failed: %v", err)
	}
	if !consolidation.Summarized {
		t.Fatal("expected consolidation to run")
	}
	if consolidation.MessageCount != 4 || consolidation.UserMessageCount != 2 {
		t.Errorf("unexpected counts: %d total, %d user", consolidation.MessageCount, consolidation.UserMessageCount)
	}

	// The session must be empty and the prompt must carry the new memory
	messages, err = agents.GetSessionMessages(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("failed to reload messages: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected cleared session, found %d messages", len(messages))
	}

	reloaded, err := agents.GetAgent(context.Background(), &user, agent.ID)
	if err != nil {
		t.Fatalf("failed to reload agent: %v", err)
	}
	if reloaded.LastSummarizedAt == nil {
		t.Error("expected last_summarized_at to be stamped")
	}
	wantPrompt := initialPrompt + "\n\nToday my friend greeted me warmly. This experience changed me: I feel appreciated."
	if reloaded.CurrentPrompt != wantPrompt {
		t.Errorf("post-consolidation prompt = %q, want %q", reloaded.CurrentPrompt, wantPrompt)
	}

	// Knowledge index entry should be queryable by keyword
	entries := knowledge.SearchByQuery(context.Background(), agent.ID, "greeting", 5)
	if len(entries) != 1 {
		t.Fatalf("expected 1 knowledge entry, got %d", len(entries))
	}

	// Undo removes the summary and its index entry
	undo, err := memory.DeleteLatestSummary(context.Background(), &user, agent.ID)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if undo.RemainingCount != 0 {
		t.Errorf("expected no remaining summaries, got %d", undo.RemainingCount)
	}

	if entries := knowledge.SearchByQuery(context.Background(), agent.ID, "greeting", 5); len(entries) != 0 {
		t.Errorf("knowledge entry should be gone after undo, got %d", len(entries))
	}

	// Undo restores the prompt to its pre-consolidation value exactly
	restored, err := agents.GetAgent(context.Background(), &user, agent.ID)
	if err != nil {
		t.Fatalf("failed to reload agent after undo: %v", err)
	}
	if restored.CurrentPrompt != initialPrompt {
		t.Errorf("post-undo prompt = %q, want %q", restored.CurrentPrompt, initialPrompt)
	}

	// A second undo has nothing to delete
	if _, err := memory.DeleteLatestSummary(context.Background(), &user, agent.ID); !errors.Is(err, ErrNoSummaryToDelete) {
		t.Errorf("expected ErrNoSummaryToDelete, got %v", err)
	}
}

// TestConsolidateEmptySession verifies the no-op path
func TestConsolidateEmptySession(t *testing.T) {
	db := openIntegrationDB(t)

	user := model.User{Email: "empty@test.local", PasswordHash: "x", Name: "Empty"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Select("Agents").Delete(&user)
	})

	agents := NewAgentService(db)
	agent, err := agents.CreateAgent(context.Background(), &user, "Quiet", "You are quiet.")
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	memory := NewMemoryService(db, &queuedCompleter{responses: []string{"unused"}})
	result, err := memory.ClearAndSummarize(context.Background(), &user, agent.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summarized {
		t.Error("empty session must not be consolidated")
	}
}
