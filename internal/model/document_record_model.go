package model

import (
	"time"

	"github.com/google/uuid"
)

type DocumentRecord struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId string    `gorm:"type:uuid;not null;index"`
	Filename  string    `gorm:"type:text;not null"`
	Pages     int       `gorm:"default:0"` // 0 for plain-text uploads
	Chunks    int       `gorm:"default:0"`
	SizeBytes int64     `gorm:"default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (DocumentRecord) TableName() string {
	return "document_records"
}
