// Package responder runs the retrieval-augmented answer pipeline for a
// single question: embed, search the session index, build the grounded
// prompt, generate, then record the exchange.
package responder

import (
	"context"

	"docchat-be/pkg/embedding"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/prompt"
	"docchat-be/pkg/store"
)

type Responder struct {
	embedder embedding.EmbeddingProvider
	llm      llm.LLMProvider
	topK     int
	window   int
}

func New(embedder embedding.EmbeddingProvider, llmProvider llm.LLMProvider, topK, window int) *Responder {
	if topK <= 0 {
		topK = 10
	}
	if window < 0 {
		window = 0
	}
	return &Responder{
		embedder: embedder,
		llm:      llmProvider,
		topK:     topK,
		window:   window,
	}
}

// Answer resolves one question against the session's documents. Questions
// on the same session run strictly one at a time. The conversation history
// gains the user and assistant turns only after generation succeeds, so a
// failed question leaves the session exactly as it was.
func (r *Responder) Answer(ctx context.Context, sess *store.Session, question string) (string, error) {
	if err := sess.BeginTurn(); err != nil {
		return "", err
	}
	defer sess.EndTurn()

	queryResp, err := r.embedder.Generate(ctx, question, embedding.TaskRetrievalQuery)
	if err != nil {
		return "", &store.EmbeddingFailure{Err: err}
	}

	results, err := sess.Search(queryResp.Embedding.Values, r.topK)
	if err != nil {
		return "", err
	}

	// History is captured before this turn is recorded, so the prompt
	// carries only prior exchanges.
	history := sess.History(r.window)
	grounded := prompt.NewGroundedBuilder(results, history, question).Build()

	answer, err := r.llm.Generate(ctx, grounded, llm.WithTemperature(0))
	if err != nil {
		return "", &store.GenerationFailure{Err: err}
	}

	sess.AppendTurn(store.RoleUser, question)
	sess.AppendTurn(store.RoleAssistant, answer)
	return answer, nil
}
