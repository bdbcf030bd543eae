package store

import (
	"errors"
	"testing"
)

type fakeIndex struct {
	size     int
	released bool
	queried  int
}

func (f *fakeIndex) Insert(passages []Passage) error { f.size += len(passages); return nil }
func (f *fakeIndex) Seal()                           {}
func (f *fakeIndex) Query(vec []float32, k int) ([]SearchResult, error) {
	f.queried++
	return nil, nil
}
func (f *fakeIndex) Size() int { return f.size }
func (f *fakeIndex) Release()  { f.released = true }

func readySession(t *testing.T) (*Session, *fakeIndex) {
	t.Helper()
	s := NewSession("s1")
	if err := s.BeginIngestion(); err != nil {
		t.Fatalf("BeginIngestion() error = %v", err)
	}
	idx := &fakeIndex{size: 3}
	if err := s.CompleteIngestion(idx, []string{"a.pdf"}); err != nil {
		t.Fatalf("CompleteIngestion() error = %v", err)
	}
	return s, idx
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("s1")
	if got := s.State(); got != StateUninitialized {
		t.Fatalf("State() = %v, want %v", got, StateUninitialized)
	}

	if err := s.BeginIngestion(); err != nil {
		t.Fatalf("BeginIngestion() error = %v", err)
	}
	if got := s.State(); got != StateIngesting {
		t.Fatalf("State() = %v, want %v", got, StateIngesting)
	}

	if err := s.CompleteIngestion(&fakeIndex{}, []string{"a.pdf"}); err != nil {
		t.Fatalf("CompleteIngestion() error = %v", err)
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("State() = %v, want %v", got, StateReady)
	}

	if err := s.Bind(nil); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if got := s.State(); got != StateConnected {
		t.Fatalf("State() = %v, want %v", got, StateConnected)
	}

	if !s.Close() {
		t.Fatal("Close() = false on first close, want true")
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("State() = %v, want %v", got, StateClosed)
	}
	if s.Close() {
		t.Fatal("Close() = true on second close, want false")
	}
}

func TestSessionBindErrors(t *testing.T) {
	ingesting := NewSession("s1")
	_ = ingesting.BeginIngestion()

	ready, _ := readySession(t)
	bound, _ := readySession(t)
	_ = bound.Bind(nil)

	closed, _ := readySession(t)
	closed.Close()

	tests := []struct {
		name    string
		session *Session
		wantErr error
	}{
		{"ingesting", ingesting, ErrSessionNotReady},
		{"already bound", bound, ErrSessionAlreadyBound},
		{"closed", closed, ErrSessionClosed},
		{"ready binds fine", ready, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Bind(nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Bind() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionCloseReleasesResources(t *testing.T) {
	s, idx := readySession(t)
	canceled := false
	if err := s.Bind(func() { canceled = true }); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	s.AppendTurn(RoleUser, "hello")

	s.Close()

	if !idx.released {
		t.Error("Close() did not release the index")
	}
	if !canceled {
		t.Error("Close() did not cancel in-flight work")
	}
	if got := s.TurnCount(); got != 0 {
		t.Errorf("TurnCount() after close = %d, want 0", got)
	}
	if got := s.PassageCount(); got != 0 {
		t.Errorf("PassageCount() after close = %d, want 0", got)
	}
}

func TestSessionFailIngestionReleasesIndex(t *testing.T) {
	s := NewSession("s1")
	_ = s.BeginIngestion()
	s.FailIngestion()
	if got := s.State(); got != StateClosed {
		t.Fatalf("State() = %v, want %v", got, StateClosed)
	}
	if err := s.Bind(nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Bind() after failed ingestion error = %v, want %v", err, ErrSessionClosed)
	}
}

func TestSessionSearchStateGating(t *testing.T) {
	ingesting := NewSession("s1")
	_ = ingesting.BeginIngestion()
	if _, err := ingesting.Search([]float32{1}, 1); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("Search() before READY error = %v, want %v", err, ErrSessionNotReady)
	}

	ready, idx := readySession(t)
	if _, err := ready.Search([]float32{1}, 1); err != nil {
		t.Errorf("Search() on READY error = %v", err)
	}
	if idx.queried != 1 {
		t.Errorf("index queried %d times, want 1", idx.queried)
	}

	ready.Close()
	if _, err := ready.Search([]float32{1}, 1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Search() after close error = %v, want %v", err, ErrSessionClosed)
	}
}

func TestSessionBeginTurnStateGating(t *testing.T) {
	s, _ := readySession(t)
	if err := s.BeginTurn(); err != nil {
		t.Fatalf("BeginTurn() on READY error = %v", err)
	}
	s.EndTurn()

	s.Close()
	if err := s.BeginTurn(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("BeginTurn() after close error = %v, want %v", err, ErrSessionClosed)
	}
}

func TestSessionHistoryWindow(t *testing.T) {
	s, _ := readySession(t)
	s.AppendTurn(RoleUser, "q1")
	s.AppendTurn(RoleAssistant, "a1")
	s.AppendTurn(RoleUser, "q2")
	s.AppendTurn(RoleAssistant, "a2")

	got := s.History(2)
	if len(got) != 2 {
		t.Fatalf("History(2) returned %d turns, want 2", len(got))
	}
	if got[0].Text != "q2" || got[1].Text != "a2" {
		t.Errorf("History(2) = [%q %q], want [q2 a2]", got[0].Text, got[1].Text)
	}

	if full := s.History(0); len(full) != 4 {
		t.Errorf("History(0) returned %d turns, want 4", len(full))
	}
	if wide := s.History(10); len(wide) != 4 {
		t.Errorf("History(10) returned %d turns, want 4", len(wide))
	}
}
