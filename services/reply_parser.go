package services

import (
	"encoding/json"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// Reply delay tuning. Replies after the first get a randomized delay to
// imitate typing time; long replies take a bit longer.
const (
	FirstReplyDelay     = 0
	MinReplyDelay       = 1
	MaxReplyDelay       = 5
	LongReplyThreshold  = 200
	LongReplyExtraDelay = 2
	MinNormalizedDelay  = 0
	MaxNormalizedDelay  = 10
)

// ParseOutcome tells how the raw model output was turned into replies
type ParseOutcome int

const (
	// ParseWellFormed means the output decoded directly as the expected JSON
	ParseWellFormed ParseOutcome = iota
	// ParseRecovered means decoding needed repair (code fences, embedded
	// JSON span, or doubly-encoded reply elements)
	ParseRecovered
	// ParseFallback means no reply structure was found and the raw text
	// became a single reply
	ParseFallback
)

// String returns a readable name for logging
func (o ParseOutcome) String() string {
	switch o {
	case ParseWellFormed:
		return "well_formed"
	case ParseRecovered:
		return "recovered"
	default:
		return "fallback"
	}
}

// AgentReply is one normalized reply with its display delay
type AgentReply struct {
	Content          string `json:"content"`
	SendDelaySeconds int    `json:"send_delay_seconds"`
}

// ParsedReplies is the result of parsing a raw model response
type ParsedReplies struct {
	Outcome ParseOutcome
	Replies []AgentReply
	Raw     string
}

// ReplyParser turns raw agent model output into normalized reply lists.
// The model is asked for {"replies": [{content, send_delay_seconds}]} but
// regularly wraps it in markdown fences, prepends prose, or double-encodes
// elements, so parsing degrades step by step and never fails outright.
type ReplyParser struct {
	rng *rand.Rand
}

// NewReplyParser creates a reply parser with a time-seeded delay source
func NewReplyParser() *ReplyParser {
	return &ReplyParser{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var (
	codeFenceJSONRe = regexp.MustCompile("```json\\s*")
	codeFenceRe     = regexp.MustCompile("```\\s*")
	jsonSpanRe      = regexp.MustCompile(`(?s)\{.*\}`)
)

// cleanCodeFences strips markdown code block markers
func cleanCodeFences(text string) string {
	text = codeFenceJSONRe.ReplaceAllString(text, "")
	text = codeFenceRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

type replyEnvelope struct {
	Replies []json.RawMessage `json:"replies"`
}

// Parse decodes a raw model response into normalized replies.
//
// Steps: strip code fences, decode directly, fall back to the first {...}
// span, and finally treat the whole text as a single zero-delay reply.
// String elements inside "replies" are re-decoded in case the model
// JSON-encoded them a second time.
func (p *ReplyParser) Parse(raw string) ParsedReplies {
	cleaned := cleanCodeFences(raw)
	fenced := cleaned != strings.TrimSpace(raw)

	envelope, direct := decodeEnvelope(cleaned)
	if envelope == nil {
		if span := jsonSpanRe.FindString(cleaned); span != "" {
			envelope, _ = decodeEnvelope(span)
			direct = false
		}
	}

	if envelope == nil || len(envelope.Replies) == 0 {
		log.Printf("[Reply Parser] no reply structure found, falling back to single reply (%d chars)", len(raw))
		return ParsedReplies{
			Outcome: ParseFallback,
			Replies: []AgentReply{{Content: raw, SendDelaySeconds: FirstReplyDelay}},
			Raw:     raw,
		}
	}

	replies, recoveredElement := p.normalizeReplies(envelope.Replies)
	if len(replies) == 0 {
		return ParsedReplies{
			Outcome: ParseFallback,
			Replies: []AgentReply{{Content: raw, SendDelaySeconds: FirstReplyDelay}},
			Raw:     raw,
		}
	}

	outcome := ParseWellFormed
	if !direct || fenced || recoveredElement {
		outcome = ParseRecovered
	}

	log.Printf("[Reply Parser] parsed %d replies (%s)", len(replies), outcome)

	return ParsedReplies{Outcome: outcome, Replies: replies, Raw: raw}
}

func decodeEnvelope(text string) (*replyEnvelope, bool) {
	var env replyEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, false
	}
	return &env, true
}

type rawReply struct {
	Content          string `json:"content"`
	SendDelaySeconds int    `json:"send_delay_seconds"`
}

// normalizeReplies converts raw envelope elements into normalized replies.
// Returns the replies and whether any element needed string re-decoding.
func (p *ReplyParser) normalizeReplies(elements []json.RawMessage) ([]AgentReply, bool) {
	replies := make([]AgentReply, 0, len(elements))
	recovered := false

	for _, el := range elements {
		content, delay, wasString := decodeReplyElement(el)
		if wasString {
			recovered = true
		}
		replies = append(replies, AgentReply{Content: content, SendDelaySeconds: delay})
	}

	for idx := range replies {
		replies[idx].SendDelaySeconds = p.finalizeDelay(idx, replies[idx])
	}

	return replies, recovered
}

// decodeReplyElement decodes a single element of the "replies" array. The
// element is normally an object, but models sometimes emit it as a
// JSON-encoded string, occasionally containing another encoded object.
func decodeReplyElement(el json.RawMessage) (content string, delay int, wasString bool) {
	var obj rawReply
	if err := json.Unmarshal(el, &obj); err == nil {
		return obj.Content, obj.SendDelaySeconds, false
	}

	var str string
	if err := json.Unmarshal(el, &str); err != nil {
		return "", 0, false
	}

	// The string may itself be an encoded reply object
	var inner rawReply
	if err := json.Unmarshal([]byte(str), &inner); err == nil && inner.Content != "" {
		return inner.Content, inner.SendDelaySeconds, true
	}

	return str, 0, true
}

// finalizeDelay applies the delay rules: the first reply is always
// immediate, unspecified delays are computed from position and length, and
// explicit delays are clamped to the allowed range.
func (p *ReplyParser) finalizeDelay(idx int, reply AgentReply) int {
	if idx == 0 {
		return FirstReplyDelay
	}
	if reply.SendDelaySeconds == 0 {
		// The long-reply threshold counts characters, not bytes
		return p.computeDelay(len([]rune(reply.Content)))
	}
	return normalizeDelay(reply.SendDelaySeconds)
}

// computeDelay picks a randomized delay for a non-first reply
func (p *ReplyParser) computeDelay(contentLength int) int {
	delay := MinReplyDelay + p.rng.Intn(MaxReplyDelay-MinReplyDelay+1)
	if contentLength > LongReplyThreshold {
		delay += LongReplyExtraDelay
	}
	return normalizeDelay(delay)
}

// normalizeDelay clamps a delay to the allowed range
func normalizeDelay(delay int) int {
	if delay < MinNormalizedDelay {
		return MinNormalizedDelay
	}
	if delay > MaxNormalizedDelay {
		return MaxNormalizedDelay
	}
	return delay
}
