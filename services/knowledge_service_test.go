package services

import (
	"testing"
	"time"

	"github.com/kindred-ai/kindred-api/model"
)

func newTestKnowledgeService(now time.Time) *KnowledgeService {
	s := NewKnowledgeService(nil, DefaultLexicon())
	s.now = func() time.Time { return now }
	return s
}

func TestResolveDateKeywordYesterday(t *testing.T) {
	// Wednesday
	today := time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

	dates := ResolveDateKeyword("yesterday", today)
	if len(dates) != 1 {
		t.Fatalf("expected 1 date, got %d", len(dates))
	}
	if got := dates[0].Format("2006-01-02"); got != "2025-06-10" {
		t.Errorf("expected 2025-06-10, got %s", got)
	}

	dates = ResolveDateKeyword("day_before_yesterday", today)
	if got := dates[0].Format("2006-01-02"); got != "2025-06-09" {
		t.Errorf("expected 2025-06-09, got %s", got)
	}
}

func TestResolveDateKeywordLastWeek(t *testing.T) {
	// Wednesday 2025-06-11: previous calendar week is Mon 2025-06-02 through Sun 2025-06-08
	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	dates := ResolveDateKeyword("last_week", today)
	if len(dates) != 7 {
		t.Fatalf("expected 7 dates, got %d", len(dates))
	}
	if got := dates[0].Format("2006-01-02"); got != "2025-06-02" {
		t.Errorf("expected week to start on Monday 2025-06-02, got %s", got)
	}
	if got := dates[6].Format("2006-01-02"); got != "2025-06-08" {
		t.Errorf("expected week to end on Sunday 2025-06-08, got %s", got)
	}
}

func TestResolveDateKeywordLastWeekFromMonday(t *testing.T) {
	// A Monday: previous week must still be the full prior Mon-Sun span
	today := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	dates := ResolveDateKeyword("last_week", today)
	if got := dates[0].Format("2006-01-02"); got != "2025-06-02" {
		t.Errorf("expected 2025-06-02, got %s", got)
	}
}

func TestResolveDateKeywordRollingWindows(t *testing.T) {
	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	dates := ResolveDateKeyword("last_7_days", today)
	if len(dates) != 7 {
		t.Fatalf("expected 7 dates, got %d", len(dates))
	}
	if got := dates[0].Format("2006-01-02"); got != "2025-06-11" {
		t.Errorf("last_7_days should include today, got first %s", got)
	}

	dates = ResolveDateKeyword("last_30_days", today)
	if len(dates) != 30 {
		t.Fatalf("expected 30 dates, got %d", len(dates))
	}
}

func TestResolveDateKeywordExplicitDate(t *testing.T) {
	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	dates := ResolveDateKeyword("2024-01-15", today)
	if len(dates) != 1 || dates[0].Format("2006-01-02") != "2024-01-15" {
		t.Fatalf("expected explicit date parse, got %v", dates)
	}

	if dates := ResolveDateKeyword("someday", today); dates != nil {
		t.Errorf("unknown keyword should yield nil, got %v", dates)
	}
}

func TestParseDateQuery(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	s := newTestKnowledgeService(now)

	dates := s.ParseDateQuery("what did we talk about yesterday")
	if len(dates) != 1 || dates[0].Format("2006-01-02") != "2025-06-10" {
		t.Errorf("expected yesterday resolution, got %v", dates)
	}

	dates = s.ParseDateQuery("昨天我们聊了什么")
	if len(dates) != 1 || dates[0].Format("2006-01-02") != "2025-06-10" {
		t.Errorf("expected Chinese yesterday resolution, got %v", dates)
	}

	dates = s.ParseDateQuery("show me 2024-03-05 and 2024-03-07")
	if len(dates) != 2 {
		t.Fatalf("expected 2 explicit dates, got %d", len(dates))
	}
	if dates[0].After(dates[1]) {
		t.Errorf("dates should be sorted ascending")
	}

	if dates := s.ParseDateQuery("tell me a joke"); len(dates) != 0 {
		t.Errorf("expected no dates, got %v", dates)
	}
}

func TestExtractKeywords(t *testing.T) {
	s := newTestKnowledgeService(time.Now())

	keywords := s.ExtractKeywords("did we discuss hiking plans yesterday")
	for _, kw := range keywords {
		if kw == "we" || kw == "did" {
			t.Errorf("stop-word %q should have been dropped", kw)
		}
	}

	found := false
	for _, kw := range keywords {
		if kw == "hiking" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'hiking' in keywords, got %v", keywords)
	}

	// Single-rune tokens are noise
	if keywords := s.ExtractKeywords("a b 了"); len(keywords) != 0 {
		t.Errorf("expected no keywords from single-rune tokens, got %v", keywords)
	}
}

func TestMatchScoreWeighting(t *testing.T) {
	entry := model.AgentKnowledgeIndex{
		Summary:  "We planned a hiking trip in the mountains",
		Topics:   model.StringArray{"hiking", "travel"},
		Keywords: model.StringArray{"hiking", "mountains"},
	}

	// summary +1, topic +2, indexed keyword +3
	if score := matchScore(&entry, []string{"hiking"}); score != 6 {
		t.Errorf("expected score 6, got %d", score)
	}

	// summary only
	if score := matchScore(&entry, []string{"planned"}); score != 1 {
		t.Errorf("expected score 1, got %d", score)
	}

	if score := matchScore(&entry, []string{"swimming"}); score != 0 {
		t.Errorf("expected score 0, got %d", score)
	}
}

func TestRankByKeywordsDropsAndSorts(t *testing.T) {
	entries := []model.AgentKnowledgeIndex{
		{Summary: "cooking pasta"},
		{Summary: "hiking trip", Keywords: model.StringArray{"hiking"}},
		{Summary: "a hiking mention only"},
	}

	ranked := rankByKeywords(entries, []string{"hiking"})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 matching entries, got %d", len(ranked))
	}
	if ranked[0].Summary != "hiking trip" {
		t.Errorf("expected highest-scoring entry first, got %q", ranked[0].Summary)
	}
}

func TestRankByKeywordsKeepsOrderOnTies(t *testing.T) {
	entries := []model.AgentKnowledgeIndex{
		{Summary: "hiking in june"},
		{Summary: "hiking in may"},
	}

	ranked := rankByKeywords(entries, []string{"hiking"})
	if ranked[0].Summary != "hiking in june" || ranked[1].Summary != "hiking in may" {
		t.Errorf("ties should keep incoming (newest first) order, got %v", ranked)
	}
}
