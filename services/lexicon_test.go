package services

import "testing"

func TestLexiconDateTerms(t *testing.T) {
	lex := DefaultLexicon()

	cases := map[string]string{
		"what did we do yesterday": "yesterday",
		"昨天发生了什么":                  "yesterday",
		"上周我们聊了什么":                 "last_week",
		"show me the last 7 days":  "last_7_days",
		"最近30天的记忆":                 "last_30_days",
		"tell me a story":          "",
	}

	for text, want := range cases {
		if got := lex.MatchDateTerm(text); got != want {
			t.Errorf("MatchDateTerm(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestLexiconTermMatching(t *testing.T) {
	lex := DefaultLexicon()

	if !lex.ContainsRecallTerm("do you remember our trip?") {
		t.Error("expected recall term match")
	}
	if lex.ContainsRecallTerm("nice weather today") {
		t.Error("unexpected recall term match")
	}

	if !lex.ContainsGenerateTerm("please draw a cat") {
		t.Error("expected generate term match")
	}
	if !lex.ContainsGenerateTerm("change the background to a beach") {
		t.Error("expected generate term match for a modification verb")
	}
	if !lex.ContainsGenerateTerm("turn into a watercolor painting") {
		t.Error("expected generate term match for turn into")
	}
	if !lex.ContainsInquiryTerm("这是什么") {
		t.Error("expected inquiry term match for Chinese question")
	}

	if !lex.IsStopWord("The") || lex.IsStopWord("hiking") {
		t.Error("stop-word check failed")
	}
}
