package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openHandlerDB(t *testing.T) *gorm.DB {
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
		&model.AgentPromptHistory{},
		&model.AgentKnowledgeIndex{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// TestSearchKnowledgeQueryParam verifies the search endpoint reads the
// "query" parameter and rejects requests without it.
func TestSearchKnowledgeQueryParam(t *testing.T) {
	db := openHandlerDB(t)

	user := model.User{Email: "search-handler@test.local", PasswordHash: "x", Name: "Search"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Select("Agents").Delete(&user)
	})

	agent := model.Agent{UserID: user.ID, Name: "Momo", InitialPrompt: "p", CurrentPrompt: "p"}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	history := model.AgentPromptHistory{
		AgentID:     agent.ID,
		AddedPrompt: "We talked about hiking.",
		SummaryDate: datatypes.Date(time.Now()),
	}
	if err := db.Create(&history).Error; err != nil {
		t.Fatalf("failed to create prompt history: %v", err)
	}
	entry := model.AgentKnowledgeIndex{
		AgentID:         agent.ID,
		PromptHistoryID: history.ID,
		SummaryDate:     history.SummaryDate,
		Summary:         "We talked about hiking in the hills.",
		Keywords:        model.StringArray{"hiking"},
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to create knowledge entry: %v", err)
	}

	lexicon := services.DefaultLexicon()
	handler := NewAgentHandler(
		services.NewAgentService(db),
		nil,
		nil,
		services.NewKnowledgeService(db, lexicon),
	)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &user)
		return c.Next()
	})
	app.Get("/agents/:id/knowledge/search", handler.SearchKnowledge)

	path := fmt.Sprintf("/agents/%d/knowledge/search?query=hiking", agent.ID)
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Success bool                        `json:"success"`
		Data    []model.AgentKnowledgeIndex `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success || len(envelope.Data) != 1 {
		t.Fatalf("expected one matching entry, got %+v", envelope)
	}

	// Missing the parameter is a 400
	path = fmt.Sprintf("/agents/%d/knowledge/search?q=hiking", agent.ID)
	resp, err = app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400 when query is absent", resp.StatusCode)
	}
}
