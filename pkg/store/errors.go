package store

import (
	"errors"
	"fmt"
)

// Bind and lifecycle sentinels. A connection attempt that hits one of these
// leaves the session untouched.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotReady     = errors.New("session is not ready")
	ErrSessionAlreadyBound = errors.New("session already has an active connection")
	ErrSessionClosed       = errors.New("session is closed")
)

// UploadRejection reports why one file of an upload was refused. Rejections
// are collected per file; they do not abort the upload unless no file is left.
type UploadRejection struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// NoDocumentsError means an upload contained no usable document at all.
type NoDocumentsError struct {
	Rejections []UploadRejection
}

func (e *NoDocumentsError) Error() string {
	if len(e.Rejections) == 0 {
		return "upload contains no documents"
	}
	return fmt.Sprintf("no valid documents in upload (%d rejected)", len(e.Rejections))
}

// IngestionError aborts session creation. No partial state survives it.
type IngestionError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *IngestionError) Error() string {
	msg := e.Reason
	if e.Filename != "" {
		msg = fmt.Sprintf("%s: %s", e.Filename, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("ingestion failed: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("ingestion failed: %s", msg)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// EmbeddingFailure wraps an embedding provider error. During ingestion it
// aborts the whole session; at question time it fails only that question.
type EmbeddingFailure struct {
	Err error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("embedding provider failure: %v", e.Err)
}

func (e *EmbeddingFailure) Unwrap() error {
	return e.Err
}

// GenerationFailure wraps a generator error for one question. The conversation
// log is left untouched and the connection stays open.
type GenerationFailure struct {
	Err error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failure: %v", e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}
