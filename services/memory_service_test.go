package services

import (
	"strings"
	"testing"
)

func TestParseSummaryWellFormed(t *testing.T) {
	raw := `{"summary": "Today I explored the city with my friend.", "topics": ["city", "friendship"], "key_points": ["found a bookshop"], "keywords": ["city", "bookshop"], "impact": "I feel braver about new places."}`

	payload, addedPrompt := parseSummary(raw)
	if payload.Summary != "Today I explored the city with my friend." {
		t.Errorf("unexpected summary: %q", payload.Summary)
	}
	if len(payload.Topics) != 2 || payload.Topics[0] != "city" {
		t.Errorf("unexpected topics: %v", payload.Topics)
	}
	if !strings.Contains(addedPrompt, "This experience changed me: I feel braver about new places.") {
		t.Errorf("added prompt should append the impact clause, got %q", addedPrompt)
	}
	if !strings.HasPrefix(addedPrompt, payload.Summary) {
		t.Errorf("added prompt should start with the summary")
	}
}

func TestParseSummaryWithoutImpact(t *testing.T) {
	raw := `{"summary": "A quiet day of small talk.", "topics": [], "key_points": [], "keywords": [], "impact": "  "}`

	payload, addedPrompt := parseSummary(raw)
	if addedPrompt != payload.Summary {
		t.Errorf("blank impact should leave the summary unchanged, got %q", addedPrompt)
	}
}

func TestParseSummaryFencedJSON(t *testing.T) {
	raw := "```json\n{\"summary\": \"We argued and made up.\", \"impact\": \"I value patience more.\"}\n```"

	payload, addedPrompt := parseSummary(raw)
	if payload.Summary != "We argued and made up." {
		t.Errorf("fenced JSON should still decode, got %q", payload.Summary)
	}
	if !strings.Contains(addedPrompt, "I value patience more.") {
		t.Errorf("expected impact in added prompt, got %q", addedPrompt)
	}
}

func TestParseSummaryRawTextFallback(t *testing.T) {
	raw := "The model rambled instead of returning JSON."

	payload, addedPrompt := parseSummary(raw)
	if payload.Summary != raw {
		t.Errorf("fallback should keep raw text as summary, got %q", payload.Summary)
	}
	if addedPrompt != raw {
		t.Errorf("fallback should keep raw text as prompt delta, got %q", addedPrompt)
	}
	if len(payload.Topics) != 0 || len(payload.Keywords) != 0 {
		t.Errorf("fallback should leave retrieval fields empty")
	}
}
