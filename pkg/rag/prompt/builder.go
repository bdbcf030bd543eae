package prompt

import (
	"fmt"
	"strings"

	"docchat-be/pkg/store"
)

// GroundedBuilder assembles the prompt for answering a question from
// retrieved passages. Passages keep their provenance tags so the model can
// cite sources, and recent conversation turns ride along for follow-ups.
type GroundedBuilder struct {
	results  []store.SearchResult
	history  []store.ConversationTurn
	question string
}

func NewGroundedBuilder(results []store.SearchResult, history []store.ConversationTurn, question string) *GroundedBuilder {
	return &GroundedBuilder{
		results:  results,
		history:  history,
		question: question,
	}
}

func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writePassages(&prompt)
	b.writeConversation(&prompt)
	b.writeUserQuestion(&prompt)

	return prompt.String()
}

func (b *GroundedBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an assistant answering questions about documents the user uploaded.\n")
	prompt.WriteString("Use only the retrieved passages below to answer the question.\n")
	prompt.WriteString("If the passages do not contain the answer, say that you don't know.\n")
	prompt.WriteString("Use three sentences maximum and keep the answer concise.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *GroundedBuilder) writePassages(prompt *strings.Builder) {
	prompt.WriteString("<retrieved_passages>\n")
	for _, result := range b.results {
		p := result.Passage
		if p.Page > 0 {
			fmt.Fprintf(prompt, "[source: %s, page %d]\n", p.SourceDocument, p.Page)
		} else {
			fmt.Fprintf(prompt, "[source: %s]\n", p.SourceDocument)
		}
		prompt.WriteString(p.Text)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</retrieved_passages>\n\n")
}

func (b *GroundedBuilder) writeConversation(prompt *strings.Builder) {
	if len(b.history) == 0 {
		return
	}

	prompt.WriteString("<conversation>\n")
	for _, turn := range b.history {
		fmt.Fprintf(prompt, "%s: %s\n", turn.Role, turn.Text)
	}
	prompt.WriteString("</conversation>\n\n")
}

func (b *GroundedBuilder) writeUserQuestion(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.question)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now answer the question using the retrieved passages:")
}
