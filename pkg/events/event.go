package events

import "time"

// Event types emitted over the session lifecycle.
const (
	TypeSessionReady     = "SESSION_READY"
	TypeSessionClosed    = "SESSION_CLOSED"
	TypeIngestionFailed  = "INGESTION_FAILED"
	TypeQuestionAnswered = "QUESTION_ANSWERED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_READY").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the standard Event implementation; the constructors below
// produce it with well-known payload keys.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// DocumentSummary is the per-file slice of a SESSION_READY payload.
type DocumentSummary struct {
	Filename  string `json:"filename"`
	Pages     int    `json:"pages"`
	Chunks    int    `json:"chunks"`
	SizeBytes int64  `json:"size_bytes"`
}

// NewSessionReady signals that ingestion finished and the session accepts
// questions.
func NewSessionReady(sessionID string, documents []DocumentSummary, passageCount int) Event {
	return BaseEvent{
		Type: TypeSessionReady,
		Data: map[string]interface{}{
			"session_id":    sessionID,
			"documents":     documents,
			"passage_count": passageCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewSessionClosed signals that a session ended and its index was released.
func NewSessionClosed(sessionID, reason string, questionCount int) Event {
	return BaseEvent{
		Type: TypeSessionClosed,
		Data: map[string]interface{}{
			"session_id":     sessionID,
			"reason":         reason,
			"question_count": questionCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewIngestionFailed signals that an upload was aborted and nothing of it
// was kept.
func NewIngestionFailed(sessionID, reason string) Event {
	return BaseEvent{
		Type: TypeIngestionFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

// NewQuestionAnswered records one completed question turn.
func NewQuestionAnswered(sessionID string, durationMs int64) Event {
	return BaseEvent{
		Type: TypeQuestionAnswered,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}
}
