package services

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kindred-ai/kindred-api/model"
	"gorm.io/gorm"
)

// DefaultKnowledgeLimit caps how many index entries a search returns
const DefaultKnowledgeLimit = 5

var (
	isoDateRe      = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	exactISODateRe = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)
	tokenSplitRe   = regexp.MustCompile(`[，。！？,.!?;:\s]+`)
)

// KnowledgeService retrieves consolidated memories by date and keyword.
// Retrieval is strictly best-effort: internal failures are logged and
// surface as an empty result, never as an error to the conversation flow.
type KnowledgeService struct {
	db      *gorm.DB
	lexicon *Lexicon
	now     func() time.Time
}

// NewKnowledgeService creates a new knowledge retrieval service
func NewKnowledgeService(db *gorm.DB, lexicon *Lexicon) *KnowledgeService {
	return &KnowledgeService{
		db:      db,
		lexicon: lexicon,
		now:     time.Now,
	}
}

// Search returns index entries for the agent filtered by optional dates and
// ranked by keyword relevance. With keywords, entries that match none are
// excluded and the rest sort by score (ties keep newest first). Without
// keywords, entries come back newest first.
func (s *KnowledgeService) Search(ctx context.Context, agentID uint, dates []time.Time, keywords []string, limit int) []model.AgentKnowledgeIndex {
	if limit <= 0 {
		limit = DefaultKnowledgeLimit
	}

	query := s.db.WithContext(ctx).Where("agent_id = ?", agentID)

	if len(dates) > 0 {
		dateStrs := make([]string, 0, len(dates))
		for _, d := range dates {
			dateStrs = append(dateStrs, d.Format("2006-01-02"))
		}
		query = query.Where("summary_date IN ?", dateStrs)
	}

	var results []model.AgentKnowledgeIndex
	if err := query.Order("summary_date DESC, created_at DESC").Find(&results).Error; err != nil {
		log.Printf("[Knowledge] search failed for agent %d: %v", agentID, err)
		return nil
	}

	if len(keywords) > 0 {
		results = rankByKeywords(results, keywords)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	log.Printf("[Knowledge] search for agent %d returned %d entries", agentID, len(results))

	return results
}

// SearchByQuery runs a free-text search: relative and explicit dates are
// resolved from the query, remaining tokens become keywords.
func (s *KnowledgeService) SearchByQuery(ctx context.Context, agentID uint, query string, limit int) []model.AgentKnowledgeIndex {
	dates := s.ParseDateQuery(query)
	keywords := s.ExtractKeywords(query)
	return s.Search(ctx, agentID, dates, keywords, limit)
}

// ListByAgent returns every index entry for the agent, newest first
func (s *KnowledgeService) ListByAgent(ctx context.Context, agentID uint) ([]model.AgentKnowledgeIndex, error) {
	var results []model.AgentKnowledgeIndex
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("summary_date DESC, created_at DESC").
		Find(&results).Error
	return results, err
}

// rankByKeywords drops zero-score entries and sorts by score descending.
// The stable sort keeps the newest-first ordering for equal scores.
func rankByKeywords(results []model.AgentKnowledgeIndex, keywords []string) []model.AgentKnowledgeIndex {
	type scored struct {
		score int
		entry model.AgentKnowledgeIndex
	}

	matched := make([]scored, 0, len(results))
	for _, entry := range results {
		if score := matchScore(&entry, keywords); score > 0 {
			matched = append(matched, scored{score: score, entry: entry})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})

	ranked := make([]model.AgentKnowledgeIndex, len(matched))
	for i, m := range matched {
		ranked[i] = m.entry
	}
	return ranked
}

// matchScore scores one entry against the keyword list: +1 for a keyword
// appearing in the summary, +2 for appearing in a topic, +3 for exactly
// matching an indexed keyword.
func matchScore(entry *model.AgentKnowledgeIndex, keywords []string) int {
	score := 0
	summaryLower := strings.ToLower(entry.Summary)

	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if strings.Contains(summaryLower, kwLower) {
			score++
		}
	}

	for _, topic := range entry.Topics {
		topicLower := strings.ToLower(topic)
		for _, kw := range keywords {
			if strings.Contains(topicLower, strings.ToLower(kw)) {
				score += 2
			}
		}
	}

	for _, indexed := range entry.Keywords {
		indexedLower := strings.ToLower(indexed)
		for _, kw := range keywords {
			if strings.ToLower(kw) == indexedLower {
				score += 3
			}
		}
	}

	return score
}

// ParseDateQuery extracts concrete dates from a free-text query. Relative
// phrases come from the lexicon; explicit YYYY-MM-DD dates are picked up
// anywhere in the text. The result is deduplicated and sorted ascending.
func (s *KnowledgeService) ParseDateQuery(query string) []time.Time {
	today := truncateToDay(s.now())
	var dates []time.Time

	if keyword := s.lexicon.MatchDateTerm(query); keyword != "" {
		dates = append(dates, ResolveDateKeyword(keyword, today)...)
	}

	for _, match := range isoDateRe.FindAllString(query, -1) {
		if d, err := time.ParseInLocation("2006-1-2", match, time.UTC); err == nil {
			dates = append(dates, d)
		}
	}

	return dedupeSortDates(dates)
}

// ResolveDateKeyword expands a canonical date keyword into concrete dates
// relative to today. Unrecognized keywords yield an empty set, which the
// caller treats as "no date filter".
func ResolveDateKeyword(keyword string, today time.Time) []time.Time {
	today = truncateToDay(today)

	switch keyword {
	case "yesterday":
		return []time.Time{today.AddDate(0, 0, -1)}
	case "day_before_yesterday":
		return []time.Time{today.AddDate(0, 0, -2)}
	case "last_week":
		// Monday of the previous calendar week through Sunday
		start := today.AddDate(0, 0, -(isoWeekday(today) + 7))
		dates := make([]time.Time, 0, 7)
		for i := 0; i < 7; i++ {
			dates = append(dates, start.AddDate(0, 0, i))
		}
		return dates
	case "last_7_days":
		dates := make([]time.Time, 0, 7)
		for i := 0; i < 7; i++ {
			dates = append(dates, today.AddDate(0, 0, -i))
		}
		return dates
	case "last_30_days":
		dates := make([]time.Time, 0, 30)
		for i := 0; i < 30; i++ {
			dates = append(dates, today.AddDate(0, 0, -i))
		}
		return dates
	}

	if exactISODateRe.MatchString(keyword) {
		if d, err := time.ParseInLocation("2006-1-2", keyword, time.UTC); err == nil {
			return []time.Time{d}
		}
	}

	return nil
}

// ExtractKeywords tokenizes a query on whitespace and punctuation, dropping
// stop-words and single-character tokens
func (s *KnowledgeService) ExtractKeywords(query string) []string {
	var keywords []string
	for _, token := range tokenSplitRe.Split(query, -1) {
		token = strings.TrimSpace(token)
		if token == "" || len([]rune(token)) <= 1 {
			continue
		}
		if s.lexicon.IsStopWord(token) {
			continue
		}
		keywords = append(keywords, token)
	}
	return keywords
}

// isoWeekday returns Monday=0 .. Sunday=6
func isoWeekday(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dedupeSortDates(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(dates))
	unique := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		key := d.Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			unique = append(unique, d)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Before(unique[j]) })
	return unique
}
