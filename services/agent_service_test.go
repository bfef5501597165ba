package services

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateBatchMessages(t *testing.T) {
	messages, err := ValidateBatchMessages([]string{"  hello ", "", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after filtering, got %d", len(messages))
	}
	if messages[0] != "hello" {
		t.Errorf("expected trimmed message, got %q", messages[0])
	}
}

func TestValidateBatchMessagesEmpty(t *testing.T) {
	if _, err := ValidateBatchMessages(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestValidateBatchMessagesTooMany(t *testing.T) {
	batch := make([]string, MaxBatchMessages+1)
	for i := range batch {
		batch[i] = "msg"
	}
	if _, err := ValidateBatchMessages(batch); !errors.Is(err, ErrTooManyMessages) {
		t.Errorf("expected ErrTooManyMessages, got %v", err)
	}
}

func TestValidateBatchMessagesAllBlank(t *testing.T) {
	if _, err := ValidateBatchMessages([]string{"  ", "\t", "\n"}); !errors.Is(err, ErrAllMessagesBlank) {
		t.Errorf("expected ErrAllMessagesBlank, got %v", err)
	}
}

func TestValidateBatchMessagesTooLong(t *testing.T) {
	long := strings.Repeat("好", MaxMessageLength+1)
	_, err := ValidateBatchMessages([]string{"fine", long})
	if !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}

	// Exactly at the rune limit is allowed, multi-byte runes count as one
	exact := strings.Repeat("好", MaxMessageLength)
	if _, err := ValidateBatchMessages([]string{exact}); err != nil {
		t.Errorf("message at rune limit should pass, got %v", err)
	}
}

func TestComposeCurrentPrompt(t *testing.T) {
	initial := "You are a cheerful companion."

	if got := ComposeCurrentPrompt(initial, nil); got != initial {
		t.Errorf("no deltas should return the initial prompt, got %q", got)
	}

	got := ComposeCurrentPrompt(initial, []string{"I learned to cook.", "I made a friend."})
	want := initial + "\n\nI learned to cook.\n\nI made a friend."
	if got != want {
		t.Errorf("unexpected composed prompt:\ngot:  %q\nwant: %q", got, want)
	}
}
