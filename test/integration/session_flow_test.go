package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-be/internal/constant"
	"docchat-be/internal/controller"
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/service"
	"docchat-be/internal/websocket"
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
Bake at high heat inside a covered pot to trap the steam the crust needs.`

// hashEmbedder buckets words into a fixed-width vector, so texts that share
// words score close without any network call.
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

// echoLLM answers with the top retrieved passage, which makes retrieval
// visible in assertions.
type echoLLM struct{}

func (echoLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "stub", nil
}

func (echoLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
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

type testLogger struct{}

func (testLogger) Debug(string, string, map[string]interface{}) {}
func (testLogger) Info(string, string, map[string]interface{})  {}
func (testLogger) Warn(string, string, map[string]interface{})  {}
func (testLogger) Error(string, string, map[string]interface{}) {}
func (testLogger) Sync() error                                  { return nil }

type busSink struct{}

func (busSink) Publish(context.Context, []byte) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newStack builds the production wiring with stubbed AI providers.
func newStack(t *testing.T, idleTimeout time.Duration) (*fiber.App, *memory.SessionRegistry) {
	t.Helper()

	embedder := &hashEmbedder{dim: 64}
	rsp := responder.New(embedder, echoLLM{}, 3, 4)

	var chatService service.IChatService
	registry := memory.NewSessionRegistry(idleTimeout, func(sess *store.Session) {
		if chatService != nil {
			chatService.NotifyEvicted(sess)
		}
	})
	chatService = service.NewChatService(registry, rsp, busSink{}, nil, testLogger{})

	ingestionService := service.NewIngestionService(
		registry,
		chunker.NewSplitter(200, 40),
		embedder,
		busSink{},
		nil,
		testLogger{},
		service.IngestionConfig{EmbedConcurrency: 2},
	)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	controller.NewSessionController(ingestionService, chatService).RegisterRoutes(api)
	websocket.NewHandler(registry, chatService, testLogger{}, idleTimeout).RegisterRoutes(api)

	return app, registry
}

func uploadRequest(t *testing.T, url string, files [][2]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateFormFile("files", f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, body io.Reader, out interface{}) envelope {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func TestSessionLifecycleOverREST(t *testing.T) {
	app, _ := newStack(t, time.Minute)

	// Upload two documents.
	req := uploadRequest(t, "/api/sessions", [][2]string{
		{"scheduler.txt", schedulerDoc},
		{"sourdough.md", bakingDoc},
	})
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created dto.CreateSessionResponse
	decodeEnvelope(t, resp.Body, &created)
	resp.Body.Close()
	require.NotEmpty(t, created.SessionId)
	require.Len(t, created.Files, 2)

	// Session reports ready.
	req, _ = http.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionId, nil)
	resp, err = app.Test(req, 5000)
	require.NoError(t, err)
	var status dto.SessionStatusResponse
	decodeEnvelope(t, resp.Body, &status)
	resp.Body.Close()
	assert.Equal(t, store.StateReady, status.State)
	assert.Greater(t, status.PassageCount, 0)
	assert.Equal(t, 0, status.QuestionCount)

	// Ask about one document and expect its passage back.
	askBody := strings.NewReader(`{"question":"What happens when a goroutine blocks in a syscall?"}`)
	req, _ = http.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionId+"/ask", askBody)
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var answer dto.AskResponse
	decodeEnvelope(t, resp.Body, &answer)
	resp.Body.Close()
	assert.Contains(t, answer.Answer, "goroutine")
	assert.NotContains(t, answer.Answer, "Sourdough")

	// Question count moved.
	req, _ = http.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionId, nil)
	resp, err = app.Test(req, 5000)
	require.NoError(t, err)
	decodeEnvelope(t, resp.Body, &status)
	resp.Body.Close()
	assert.Equal(t, 1, status.QuestionCount)

	// Unknown sessions 404.
	req, _ = http.NewRequest(http.MethodGet, "/api/sessions/does-not-exist", nil)
	resp, err = app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadWithoutUsableDocuments(t *testing.T) {
	app, registry := newStack(t, time.Minute)

	req := uploadRequest(t, "/api/sessions", [][2]string{{"binary.exe", "MZ\x00\x01"}})
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 0, registry.Count())
}

// serve starts the app on a loopback listener for tests that need a real
// socket (the websocket upgrade cannot ride app.Test).
func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func dialSession(t *testing.T, addr, sessionID string) (*fws.Conn, error) {
	t.Helper()
	url := fmt.Sprintf("ws://%s/api/sessions/%s/ws", addr, sessionID)
	conn, resp, err := fws.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if conn != nil {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	}
	return conn, err
}

func readFrame(t *testing.T, conn *fws.Conn) websocket.Frame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame websocket.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func uploadOverHTTP(t *testing.T, addr string) string {
	t.Helper()
	req := uploadRequest(t, fmt.Sprintf("http://%s/api/sessions", addr), [][2]string{
		{"scheduler.txt", schedulerDoc},
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created dto.CreateSessionResponse
	decodeEnvelope(t, resp.Body, &created)
	return created.SessionId
}

func TestConversationOverWebsocket(t *testing.T) {
	app, registry := newStack(t, time.Minute)
	addr := serve(t, app)
	sessionID := uploadOverHTTP(t, addr)

	conn, err := dialSession(t, addr, sessionID)
	require.NoError(t, err)
	defer conn.Close()

	// First frame greets the client.
	frame := readFrame(t, conn)
	assert.Equal(t, websocket.FrameSystem, frame.Type)
	assert.Equal(t, constant.SessionReadyMessage, frame.Data)

	// Binding flips the session state.
	sess, err := registry.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StateConnected, sess.State())

	// A second connection is turned away while the first holds the session.
	second, err := dialSession(t, addr, sessionID)
	require.NoError(t, err)
	_, _, err = second.ReadMessage()
	assert.True(t, fws.IsCloseError(err, fws.ClosePolicyViolation), "got %v", err)
	second.Close()

	// Blank and binary frames are ignored; the real question still lands.
	require.NoError(t, conn.WriteMessage(fws.TextMessage, []byte("   ")))
	require.NoError(t, conn.WriteMessage(fws.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(t, conn.WriteMessage(fws.TextMessage, []byte("What happens when a goroutine blocks in a syscall?")))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame = readFrame(t, conn)
	assert.Equal(t, websocket.FrameAnswer, frame.Type)
	assert.Contains(t, frame.Data, "goroutine")

	// Hanging up closes the session for good.
	conn.Close()
	require.Eventually(t, func() bool {
		_, err := registry.Get(sessionID)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, store.StateClosed, sess.State())

	// Reconnecting is refused; the session died with its connection.
	third, err := dialSession(t, addr, sessionID)
	require.NoError(t, err)
	_, _, err = third.ReadMessage()
	assert.True(t, fws.IsCloseError(err, fws.ClosePolicyViolation), "got %v", err)
	third.Close()
}

func TestWebsocketRejectsUnknownSession(t *testing.T) {
	app, _ := newStack(t, time.Minute)
	addr := serve(t, app)

	conn, err := dialSession(t, addr, "no-such-session")
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*fws.CloseError)
	require.True(t, ok, "expected close error, got %v", err)
	assert.Equal(t, fws.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, constant.CloseReasonNotFound, closeErr.Text)
}
