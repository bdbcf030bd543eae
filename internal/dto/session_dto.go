package dto

import (
	"time"

	"docchat-be/pkg/store"
)

// UploadedFile carries one multipart file from the controller into the
// ingestion service.
type UploadedFile struct {
	Filename string
	Size     int64
	Data     []byte
}

type IngestedFileInfo struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages,omitempty"`
	Chunks   int    `json:"chunks"`
}

type CreateSessionResponse struct {
	SessionId string                  `json:"session_id"`
	Files     []IngestedFileInfo      `json:"files"`
	Errors    []store.UploadRejection `json:"errors,omitempty"` // rejected files, ingestion proceeded without them
}

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type SessionStatusResponse struct {
	SessionId     string    `json:"session_id"`
	State         string    `json:"state"`
	Documents     []string  `json:"documents"`
	PassageCount  int       `json:"passage_count"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionEventMessage is the wire form of lifecycle events on the internal
// bus; the consumer decodes it to update the catalog.
type SessionEventMessage struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}
