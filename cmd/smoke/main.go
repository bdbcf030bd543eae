package main

// Runs the full ingest-and-ask pipeline in process with stubbed AI
// providers. Useful for checking the wiring without API keys, a database or
// a browser: go run ./cmd/smoke

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"

	"docchat-be/internal/constant"
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/service"
	"docchat-be/pkg/chunker"
	"docchat-be/pkg/embedding"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/responder"
	"docchat-be/pkg/store"
)

const schedulerDoc = `The Go scheduler multiplexes goroutines onto operating system threads.
Each logical processor owns a run queue, and idle processors steal work from busy ones.
When a goroutine blocks in a syscall, its thread is handed off so other goroutines keep running.`

const bakingDoc = `Sourdough bread needs a mature starter, patience, and steam in the oven.
Fold the dough every thirty minutes during bulk fermentation to build strength.
Bake at high heat inside a covered pot to trap the steam the crust needs.`

// hashEmbedder maps each word onto a bucket of a fixed-width vector. Texts
// sharing words land near each other, which is all retrieval needs here.
type hashEmbedder struct {
	dim int
}

func (h *hashEmbedder) Generate(_ context.Context, text string, _ string) (*embedding.EmbeddingResponse, error) {
	vec := make([]float32, h.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := fnv.New32a()
		sum.Write([]byte(strings.Trim(word, ".,!?")))
		vec[int(sum.Sum32())%h.dim]++
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: vec},
	}, nil
}

// echoLLM answers with the first retrieved passage so the retrieval quality
// is visible without a real model.
type echoLLM struct {
	lastPrompt string
}

func (e *echoLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	return "stub", nil
}

func (e *echoLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	e.lastPrompt = prompt
	lines := strings.Split(prompt, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "[source:") && i+1 < len(lines) {
			if text := strings.TrimSpace(lines[i+1]); text != "" {
				return "According to the documents: " + text, nil
			}
		}
	}
	return "I could not find anything relevant.", nil
}

func main() {
	color.Cyan("🚀 docchat smoke run (stubbed providers, in-process bus)\n")

	ctx := context.Background()
	sysLogger := logger.NewIsolatedLogger("logs/smoke.log")

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	defer pubSub.Close()
	publisherService := service.NewPublisherService(pubSub, constant.SessionEventsTopic)

	// Tail the bus so every lifecycle event shows up in the transcript.
	eventMessages, err := pubSub.Subscribe(ctx, constant.SessionEventsTopic)
	if err != nil {
		log.Fatalf("subscribe to event bus: %v", err)
	}
	go func() {
		for msg := range eventMessages {
			color.Magenta("  [event] %s", string(msg.Payload))
			msg.Ack()
		}
	}()

	embedder := &hashEmbedder{dim: 64}
	model := &echoLLM{}
	rsp := responder.New(embedder, model, 3, 4)

	var chatService service.IChatService
	registry := memory.NewSessionRegistry(5*time.Minute, func(sess *store.Session) {
		if chatService != nil {
			chatService.NotifyEvicted(sess)
		}
	})
	chatService = service.NewChatService(registry, rsp, publisherService, nil, sysLogger)

	ingestionService := service.NewIngestionService(
		registry,
		chunker.NewSplitter(200, 40),
		embedder,
		publisherService,
		nil,
		sysLogger,
		service.IngestionConfig{EmbedConcurrency: 2},
	)

	// 1. Upload: two usable documents plus one the engine must reject.
	color.Yellow("\n[1] Uploading documents")
	resp, err := ingestionService.CreateSession(ctx, []dto.UploadedFile{
		{Filename: "scheduler.txt", Size: int64(len(schedulerDoc)), Data: []byte(schedulerDoc)},
		{Filename: "sourdough.md", Size: int64(len(bakingDoc)), Data: []byte(bakingDoc)},
		{Filename: "tool.exe", Size: 2, Data: []byte("MZ")},
	})
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}
	color.Green("Session %s ready", resp.SessionId)
	for _, f := range resp.Files {
		fmt.Printf("  indexed %-14s chunks=%d\n", f.Filename, f.Chunks)
	}
	for _, e := range resp.Errors {
		fmt.Printf("  rejected %-13s %s\n", e.Filename, e.Error)
	}

	// 2. Questions against different documents.
	for _, question := range []string{
		"What happens when a goroutine blocks in a syscall?",
		"How do I get a good crust on sourdough bread?",
	} {
		color.Yellow("\n[2] Q: %s", question)
		answer, err := chatService.Ask(ctx, resp.SessionId, question)
		if err != nil {
			color.Red("ask failed: %v", err)
			continue
		}
		color.Green("A: %s", answer.Answer)
	}

	// 3. Show the grounded prompt the model saw last.
	color.Yellow("\n[3] Last grounded prompt (truncated)")
	prompt := model.lastPrompt
	if len(prompt) > 600 {
		prompt = prompt[:600] + "…"
	}
	fmt.Println(prompt)

	// 4. Teardown publishes the close event.
	color.Yellow("\n[4] Closing session")
	sess, err := registry.Get(resp.SessionId)
	if err != nil {
		log.Fatalf("session vanished: %v", err)
	}
	chatService.CloseSession(ctx, sess, "smoke run finished")

	// Give the bus a beat to drain before exiting.
	time.Sleep(200 * time.Millisecond)
	color.Cyan("\n✅ Smoke run complete")
}
