package agent

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/model"
)

func newTestApp(handler *AgentHandler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &model.User{Email: "t@test.local", Name: "T"})
		return c.Next()
	})
	app.Post("/agents", handler.CreateAgent)
	app.Put("/agents/:id", handler.UpdateAgent)
	return app
}

func TestCreateAgentValidation(t *testing.T) {
	// Validation runs before any service call, so no services are needed
	app := newTestApp(NewAgentHandler(nil, nil, nil, nil))

	cases := []struct {
		name string
		body string
	}{
		{"missing prompt", `{"name": "Momo"}`},
		{"missing name", `{"initial_prompt": "You are Momo."}`},
		{"name too long", `{"name": "` + strings.Repeat("x", 101) + `", "initial_prompt": "p"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/agents", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != fiber.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", resp.StatusCode)
			}
		})
	}
}

func TestUpdateAgentValidation(t *testing.T) {
	app := newTestApp(NewAgentHandler(nil, nil, nil, nil))

	req := httptest.NewRequest("PUT", "/agents/1", strings.NewReader(`{"name": ""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}
