package implementation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docchat-be/internal/model"
	"docchat-be/internal/repository/contract"
	"docchat-be/pkg/store"
)

type CatalogRepositoryImpl struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) contract.CatalogRepository {
	return &CatalogRepositoryImpl{db: db}
}

// SaveSession upserts so a replayed event never fails on the primary key.
func (r *CatalogRepositoryImpl) SaveSession(ctx context.Context, record *model.SessionRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

func (r *CatalogRepositoryImpl) SaveDocuments(ctx context.Context, docs []model.DocumentRecord) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&docs).Error
}

func (r *CatalogRepositoryImpl) MarkSessionClosed(ctx context.Context, sessionID, reason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.SessionRecord{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"state":        store.StateClosed,
			"close_reason": reason,
			"closed_at":    &now,
		}).Error
}

func (r *CatalogRepositoryImpl) IncrementQuestionCount(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&model.SessionRecord{}).
		Where("id = ?", sessionID).
		UpdateColumn("question_count", gorm.Expr("question_count + 1")).Error
}

func (r *CatalogRepositoryImpl) FindSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	var record model.SessionRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *CatalogRepositoryImpl) FindSessionDocuments(ctx context.Context, sessionID string) ([]model.DocumentRecord, error) {
	var docs []model.DocumentRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
