package model

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord is the catalog row for one session's lifecycle. Vectors and
// document text never reach the database; this is operational metadata only.
type SessionRecord struct {
	Id            string         `gorm:"type:uuid;primaryKey"` // assigned by the engine, not the database
	State         string         `gorm:"type:varchar(20);not null;index"`
	DocumentCount int            `gorm:"not null;default:0"`
	PassageCount  int            `gorm:"not null;default:0"`
	QuestionCount int            `gorm:"not null;default:0"`
	CloseReason   *string        `gorm:"type:varchar(100)"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	ClosedAt      *time.Time
}

func (SessionRecord) TableName() string {
	return "session_records"
}
