package utils

import "testing"

func TestExtractJSONPlain(t *testing.T) {
	input := `{"intent": "NORMAL_CHAT"}`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != input {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestExtractJSONFromMarkdown(t *testing.T) {
	input := "```json\n{\"summary\": \"a day\"}\n```"
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"summary": "a day"}` {
		t.Errorf("expected fenced JSON extracted, got %q", got)
	}
}

func TestExtractJSONEmbedded(t *testing.T) {
	input := `Sure! Here is the result: {"intent": "KNOWLEDGE_QUERY", "reason": "asks about {braces} in strings"} anything else?`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Intent string `json:"intent"`
	}
	if err := ExtractJSONTo(input, &decoded); err != nil {
		t.Fatalf("ExtractJSONTo failed: %v", err)
	}
	if decoded.Intent != "KNOWLEDGE_QUERY" {
		t.Errorf("unexpected intent: %q (extracted %q)", decoded.Intent, got)
	}
}

func TestExtractJSONNoJSON(t *testing.T) {
	if _, err := ExtractJSON("just prose, nothing structured"); err == nil {
		t.Error("expected error for prose input")
	}
	if _, err := ExtractJSON(""); err == nil {
		t.Error("expected error for empty input")
	}
}
