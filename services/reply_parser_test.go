package services

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseWellFormedReplies(t *testing.T) {
	parser := NewReplyParser()

	raw := `{"replies": [{"content": "Hey!", "send_delay_seconds": 2}, {"content": "How was your day?", "send_delay_seconds": 3}]}`
	result := parser.Parse(raw)

	if result.Outcome != ParseWellFormed {
		t.Errorf("expected well_formed outcome, got %s", result.Outcome)
	}
	if len(result.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(result.Replies))
	}
	if result.Replies[0].Content != "Hey!" {
		t.Errorf("unexpected first reply content: %q", result.Replies[0].Content)
	}
	// The first reply is always sent immediately regardless of what the model asked for
	if result.Replies[0].SendDelaySeconds != 0 {
		t.Errorf("expected first reply delay 0, got %d", result.Replies[0].SendDelaySeconds)
	}
	if result.Replies[1].SendDelaySeconds != 3 {
		t.Errorf("expected second reply delay 3, got %d", result.Replies[1].SendDelaySeconds)
	}
}

func TestParseCodeFencedReplies(t *testing.T) {
	parser := NewReplyParser()

	raw := "```json\n{\"replies\": [{\"content\": \"hi\", \"send_delay_seconds\": 1}]}\n```"
	result := parser.Parse(raw)

	if result.Outcome != ParseRecovered {
		t.Errorf("expected recovered outcome for fenced output, got %s", result.Outcome)
	}
	if len(result.Replies) != 1 || result.Replies[0].Content != "hi" {
		t.Fatalf("unexpected replies: %+v", result.Replies)
	}
}

func TestParseEmbeddedJSONSpan(t *testing.T) {
	parser := NewReplyParser()

	raw := `Sure, here is my answer: {"replies": [{"content": "found it", "send_delay_seconds": 1}]} hope that helps`
	result := parser.Parse(raw)

	if result.Outcome != ParseRecovered {
		t.Errorf("expected recovered outcome for embedded span, got %s", result.Outcome)
	}
	if len(result.Replies) != 1 || result.Replies[0].Content != "found it" {
		t.Fatalf("unexpected replies: %+v", result.Replies)
	}
}

func TestParseDoubleEncodedReplyElements(t *testing.T) {
	parser := NewReplyParser()

	inner := `{\"content\": \"nested\", \"send_delay_seconds\": 4}`
	raw := fmt.Sprintf(`{"replies": ["%s", "plain string reply"]}`, inner)
	result := parser.Parse(raw)

	if result.Outcome != ParseRecovered {
		t.Errorf("expected recovered outcome for string elements, got %s", result.Outcome)
	}
	if len(result.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(result.Replies))
	}
	if result.Replies[0].Content != "nested" {
		t.Errorf("expected re-decoded nested content, got %q", result.Replies[0].Content)
	}
	if result.Replies[1].Content != "plain string reply" {
		t.Errorf("expected plain string kept as content, got %q", result.Replies[1].Content)
	}
}

func TestParseFallbackToSingleReply(t *testing.T) {
	parser := NewReplyParser()

	raw := "I'm sorry, I can't structure that as JSON right now."
	result := parser.Parse(raw)

	if result.Outcome != ParseFallback {
		t.Errorf("expected fallback outcome, got %s", result.Outcome)
	}
	if len(result.Replies) != 1 {
		t.Fatalf("expected single fallback reply, got %d", len(result.Replies))
	}
	if result.Replies[0].Content != raw {
		t.Errorf("fallback reply should carry the raw text")
	}
	if result.Replies[0].SendDelaySeconds != 0 {
		t.Errorf("fallback reply should be immediate, got delay %d", result.Replies[0].SendDelaySeconds)
	}
}

func TestParseEmptyRepliesFallsBack(t *testing.T) {
	parser := NewReplyParser()

	result := parser.Parse(`{"replies": []}`)
	if result.Outcome != ParseFallback {
		t.Errorf("expected fallback for empty replies array, got %s", result.Outcome)
	}
	if len(result.Replies) != 1 {
		t.Fatalf("expected single fallback reply, got %d", len(result.Replies))
	}
}

func TestExplicitDelaysAreClamped(t *testing.T) {
	parser := NewReplyParser()

	raw := `{"replies": [
		{"content": "first", "send_delay_seconds": 7},
		{"content": "second", "send_delay_seconds": 99},
		{"content": "third", "send_delay_seconds": -3}
	]}`
	result := parser.Parse(raw)

	if len(result.Replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(result.Replies))
	}
	if result.Replies[0].SendDelaySeconds != 0 {
		t.Errorf("first reply must be immediate, got %d", result.Replies[0].SendDelaySeconds)
	}
	if result.Replies[1].SendDelaySeconds != MaxNormalizedDelay {
		t.Errorf("expected oversized delay clamped to %d, got %d", MaxNormalizedDelay, result.Replies[1].SendDelaySeconds)
	}
	if result.Replies[2].SendDelaySeconds != MinNormalizedDelay {
		t.Errorf("expected negative delay clamped to %d, got %d", MinNormalizedDelay, result.Replies[2].SendDelaySeconds)
	}
}

func TestUnspecifiedDelayIsComputed(t *testing.T) {
	parser := NewReplyParser()

	long := make([]byte, LongReplyThreshold+1)
	for i := range long {
		long[i] = 'x'
	}
	raw := fmt.Sprintf(`{"replies": [{"content": "short"}, {"content": "%s"}]}`, long)

	for i := 0; i < 50; i++ {
		result := parser.Parse(raw)
		delay := result.Replies[1].SendDelaySeconds
		min := MinReplyDelay + LongReplyExtraDelay
		max := MaxReplyDelay + LongReplyExtraDelay
		if delay < min || delay > max {
			t.Fatalf("long reply delay %d outside [%d, %d]", delay, min, max)
		}
	}
}

func TestLongReplyThresholdCountsRunes(t *testing.T) {
	parser := NewReplyParser()

	// 100 characters but 300 bytes: only the byte count crosses the
	// long-reply threshold
	cjk := strings.Repeat("好", 100)
	raw := fmt.Sprintf(`{"replies": [{"content": "short"}, {"content": "%s"}]}`, cjk)

	for i := 0; i < 50; i++ {
		result := parser.Parse(raw)
		delay := result.Replies[1].SendDelaySeconds
		if delay < MinReplyDelay || delay > MaxReplyDelay {
			t.Fatalf("short CJK reply delay %d outside [%d, %d]", delay, MinReplyDelay, MaxReplyDelay)
		}
	}
}
