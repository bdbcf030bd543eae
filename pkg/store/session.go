package store

import (
	"context"
	"sync"
	"time"
)

// Passage is one indexed chunk of an uploaded document. Passages are created
// during ingestion and never mutated afterwards; they belong to exactly one
// session's index.
type Passage struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	SourceDocument string    `json:"source_document"`
	Page           int       `json:"page"` // 1-based for paged formats, 0 otherwise
	Ordinal        int       `json:"ordinal"`
	Embedding      []float32 `json:"-"`
}

// SearchResult pairs a passage with its similarity score for one query.
type SearchResult struct {
	Passage Passage `json:"passage"`
	Score   float32 `json:"score"`
}

// PassageIndex is the similarity index a session owns. The concrete
// implementation lives in pkg/vectorindex; the session only needs this
// narrow surface.
type PassageIndex interface {
	Insert(passages []Passage) error
	Seal()
	Query(vec []float32, k int) ([]SearchResult, error)
	Size() int
	Release()
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is one entry of a session's append-only conversation log.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session lifecycle states. Transitions only move forward:
// UNINITIALIZED -> INGESTING -> READY -> CONNECTED -> CLOSED, with INGESTING
// allowed to jump straight to CLOSED when ingestion fails.
const (
	StateUninitialized = "UNINITIALIZED"
	StateIngesting     = "INGESTING"
	StateReady         = "READY"
	StateConnected     = "CONNECTED"
	StateClosed        = "CLOSED"
)

// Session binds one set of ingested documents to at most one conversational
// connection. All state transitions are guarded by the session's own mutex;
// there is no shared state between sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	state     string
	index     PassageIndex
	docs      []string
	turns     []ConversationTurn
	questions int
	cancel    context.CancelFunc

	// turnMu serializes question answering so back-to-back questions from
	// the REST and websocket paths cannot interleave the conversation log.
	turnMu sync.Mutex
}

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		state:     StateUninitialized,
	}
}

func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginIngestion moves a fresh session into INGESTING.
func (s *Session) BeginIngestion() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return stateError(s.state)
	}
	s.state = StateIngesting
	return nil
}

// CompleteIngestion attaches the sealed index and marks the session READY.
// Only at this point may the session id be handed out.
func (s *Session) CompleteIngestion(index PassageIndex, documents []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIngesting {
		return stateError(s.state)
	}
	s.index = index
	s.docs = documents
	s.state = StateReady
	return nil
}

// FailIngestion discards the session atomically. Nothing of a failed
// ingestion is ever observable: the id was never issued and no index is kept.
func (s *Session) FailIngestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		s.index.Release()
		s.index = nil
	}
	s.state = StateClosed
}

// Bind claims the session for a single connection. The cancel func is invoked
// on Close so an in-flight answer for this connection is abandoned promptly.
func (s *Session) Bind(cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReady:
		s.state = StateConnected
		s.cancel = cancel
		return nil
	case StateConnected:
		return ErrSessionAlreadyBound
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrSessionNotReady
	}
}

// Close releases everything the session owns: index, conversation log and any
// in-flight work. It is idempotent and reports whether this call performed
// the transition. CLOSED is terminal.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.index != nil {
		s.index.Release()
		s.index = nil
	}
	s.turns = nil
	return true
}

// BeginTurn reserves the session for one question/answer exchange.
// Callers must pair it with EndTurn. It fails with a lifecycle error when the
// session cannot answer questions in its current state.
func (s *Session) BeginTurn() error {
	s.turnMu.Lock()
	if err := s.answerable(); err != nil {
		s.turnMu.Unlock()
		return err
	}
	return nil
}

func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// Search runs a state-checked similarity query against the owned index.
func (s *Session) Search(vec []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	if err := s.answerableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	index := s.index
	s.mu.Unlock()

	// The query runs outside the session lock so Close never waits on it.
	return index.Query(vec, k)
}

// AppendTurn records a conversation turn. The caller holds the turn lock, so
// appends are strictly ordered.
func (s *Session) AppendTurn(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.turns = append(s.turns, ConversationTurn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
	if role == RoleAssistant {
		s.questions++
	}
}

// History returns a copy of the most recent turns, newest last. window <= 0
// means the full log.
func (s *Session) History(window int) []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if window > 0 && len(s.turns) > window {
		start = len(s.turns) - window
	}
	out := make([]ConversationTurn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// QuestionCount reports how many questions were answered over the session's
// lifetime. Unlike the conversation log it survives Close, so teardown
// reporting sees the real total.
func (s *Session) QuestionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions
}

// Documents lists the source document names this session was built from.
func (s *Session) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.docs))
	copy(out, s.docs)
	return out
}

// PassageCount reports the owned index size, 0 once released.
func (s *Session) PassageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return 0
	}
	return s.index.Size()
}

func (s *Session) answerable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerableLocked()
}

func (s *Session) answerableLocked() error {
	switch s.state {
	case StateReady, StateConnected:
		return nil
	default:
		return stateError(s.state)
	}
}

func stateError(state string) error {
	switch state {
	case StateClosed:
		return ErrSessionClosed
	case StateConnected:
		return ErrSessionAlreadyBound
	default:
		return ErrSessionNotReady
	}
}
