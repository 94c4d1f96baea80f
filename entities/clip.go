package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Clip is the durable record of one ingested segment. Rows are never updated
// in place: re-ingesting an origin id deletes and recreates all of its rows.
type Clip struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OriginID     string          `json:"origin_id" gorm:"type:text;not null;index:idx_clips_origin_id"`
	StartFrame   int             `json:"start_frame" gorm:"not null"`
	EndFrame     int             `json:"end_frame" gorm:"not null"`
	Description  string          `json:"description" gorm:"type:text;not null"`
	VideoURL     string          `json:"video_url" gorm:"type:text;not null"`
	AnimationURL *string         `json:"animation_url" gorm:"type:text"`
	Embedding    pgvector.Vector `json:"embedding" gorm:"type:vector(768)"`
	CreatedAt    time.Time       `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Clip) TableName() string {
	return "clips"
}
