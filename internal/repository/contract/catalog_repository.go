package contract

import (
	"context"

	"docchat-be/internal/model"
)

// CatalogRepository persists session lifecycle records. It lives behind the
// event consumer, so every write is asynchronous to the request path.
type CatalogRepository interface {
	SaveSession(ctx context.Context, record *model.SessionRecord) error
	SaveDocuments(ctx context.Context, docs []model.DocumentRecord) error
	MarkSessionClosed(ctx context.Context, sessionID, reason string) error
	IncrementQuestionCount(ctx context.Context, sessionID string) error
	FindSession(ctx context.Context, sessionID string) (*model.SessionRecord, error)
	FindSessionDocuments(ctx context.Context, sessionID string) ([]model.DocumentRecord, error)
}
