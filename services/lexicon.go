package services

import "strings"

// DateTerm maps a natural-language phrase to a canonical date keyword
// understood by the knowledge retrieval layer. Terms are checked in order,
// first match wins.
type DateTerm struct {
	Phrase  string
	Keyword string
}

// Lexicon holds every term list used for keyword-based intent fallbacks,
// attachment short-circuits and knowledge keyword extraction. A single
// instance is built at startup and injected into the services that need it,
// so the vocabulary can be tuned in one place.
type Lexicon struct {
	// RecallTerms mark a message as a memory/knowledge lookup
	RecallTerms []string
	// InquiryTerms mark an attachment message as a content question
	InquiryTerms []string
	// GenerateTerms mark an attachment message as an image generation request
	GenerateTerms []string
	// StopWords are dropped during keyword extraction
	StopWords []string
	// DateTerms translate relative date phrases to canonical keywords
	DateTerms []DateTerm
}

// DefaultLexicon returns the built-in bilingual vocabulary. The product
// serves Chinese and English speakers, so both languages are covered.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		RecallTerms: []string{
			"昨天", "前天", "上周", "之前", "以前", "过去",
			"发生了什么", "讨论了什么", "聊了什么", "记得",
			"查询", "查找", "搜索",
			"yesterday", "last week", "remember", "what happened",
			"what did we", "earlier", "previously",
		},
		InquiryTerms: []string{
			"什么", "如何", "为什么", "分析", "描述", "识别", "解释",
			"这是", "上面", "里面", "包含", "显示",
			"what", "how", "why", "analyze", "describe", "identify",
			"explain", "contain", "show",
		},
		GenerateTerms: []string{
			"生成", "画", "创建", "改", "修改", "变成", "改为", "改成",
			"变换", "制作", "设计", "绘制",
			"generate", "draw", "create", "modify", "change",
			"turn into", "transform", "make", "design",
		},
		StopWords: []string{
			"的", "了", "在", "是", "我", "你", "他", "她", "它",
			"我们", "你们", "他们", "这个", "那个", "什么", "怎么",
			"发生", "讨论", "聊天", "记得", "之前",
			"the", "a", "an", "is", "was", "are", "were", "do", "did",
			"we", "you", "they", "it", "what", "about", "and", "or",
		},
		DateTerms: []DateTerm{
			{Phrase: "昨天", Keyword: "yesterday"},
			{Phrase: "yesterday", Keyword: "yesterday"},
			{Phrase: "前天", Keyword: "day_before_yesterday"},
			{Phrase: "上周", Keyword: "last_week"},
			{Phrase: "last week", Keyword: "last_week"},
			{Phrase: "最近7天", Keyword: "last_7_days"},
			{Phrase: "最近一周", Keyword: "last_7_days"},
			{Phrase: "last 7 days", Keyword: "last_7_days"},
			{Phrase: "最近30天", Keyword: "last_30_days"},
			{Phrase: "最近一月", Keyword: "last_30_days"},
			{Phrase: "last 30 days", Keyword: "last_30_days"},
		},
	}
}

// ContainsRecallTerm reports whether the text mentions memory lookup
func (l *Lexicon) ContainsRecallTerm(text string) bool {
	return containsAny(text, l.RecallTerms)
}

// ContainsInquiryTerm reports whether the text asks about content
func (l *Lexicon) ContainsInquiryTerm(text string) bool {
	return containsAny(text, l.InquiryTerms)
}

// ContainsGenerateTerm reports whether the text asks for image generation
func (l *Lexicon) ContainsGenerateTerm(text string) bool {
	return containsAny(text, l.GenerateTerms)
}

// MatchDateTerm returns the canonical date keyword for the first matching
// date phrase, or "" when none matches
func (l *Lexicon) MatchDateTerm(text string) string {
	lower := strings.ToLower(text)
	for _, term := range l.DateTerms {
		if strings.Contains(lower, strings.ToLower(term.Phrase)) {
			return term.Keyword
		}
	}
	return ""
}

// IsStopWord reports whether the token should be dropped during keyword
// extraction
func (l *Lexicon) IsStopWord(token string) bool {
	lower := strings.ToLower(token)
	for _, w := range l.StopWords {
		if lower == w {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
