package prompt

import (
	"strings"
	"testing"

	"docchat-be/pkg/store"
)

func TestBuildIncludesPassagesWithProvenance(t *testing.T) {
	results := []store.SearchResult{
		{Passage: store.Passage{Text: "Paris is the capital of France.", SourceDocument: "geo.pdf", Page: 3}, Score: 0.9},
		{Passage: store.Passage{Text: "France is in Europe.", SourceDocument: "notes.txt"}, Score: 0.5},
	}

	got := NewGroundedBuilder(results, nil, "What is the capital of France?").Build()

	for _, want := range []string{
		"[source: geo.pdf, page 3]",
		"Paris is the capital of France.",
		"[source: notes.txt]",
		"France is in Europe.",
		"What is the capital of France?",
		"<retrieved_passages>",
		"<user_question>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\n%s", want, got)
		}
	}
}

func TestBuildOmitsPageForPagelessSources(t *testing.T) {
	results := []store.SearchResult{
		{Passage: store.Passage{Text: "plain text", SourceDocument: "notes.txt"}},
	}
	got := NewGroundedBuilder(results, nil, "q").Build()
	if strings.Contains(got, "page 0") {
		t.Errorf("prompt leaks zero page number:\n%s", got)
	}
}

func TestBuildConversationSection(t *testing.T) {
	history := []store.ConversationTurn{
		{Role: store.RoleUser, Text: "What is France?"},
		{Role: store.RoleAssistant, Text: "A country in Europe."},
	}

	got := NewGroundedBuilder(nil, history, "And its capital?").Build()

	if !strings.Contains(got, "<conversation>") {
		t.Fatalf("prompt missing conversation section:\n%s", got)
	}
	if !strings.Contains(got, "user: What is France?") {
		t.Errorf("prompt missing user turn:\n%s", got)
	}
	if !strings.Contains(got, "assistant: A country in Europe.") {
		t.Errorf("prompt missing assistant turn:\n%s", got)
	}

	// Empty history must not emit the section at all.
	if strings.Contains(NewGroundedBuilder(nil, nil, "q").Build(), "<conversation>") {
		t.Error("empty history still produced a conversation section")
	}
}

func TestBuildOrdersSectionsTaskFirst(t *testing.T) {
	results := []store.SearchResult{
		{Passage: store.Passage{Text: "p", SourceDocument: "a.txt"}},
	}
	got := NewGroundedBuilder(results, nil, "q").Build()

	task := strings.Index(got, "<task>")
	passages := strings.Index(got, "<retrieved_passages>")
	question := strings.Index(got, "<user_question>")
	if !(task < passages && passages < question) {
		t.Errorf("section order wrong: task=%d passages=%d question=%d", task, passages, question)
	}
}
