package models

import (
	"time"

	"gorm.io/gorm"
)

// FeedbackRecord is one row of the feedback audit log. A later rating of the
// same message is a new row; the transcript only keeps the latest value.
type FeedbackRecord struct {
	gorm.Model
	SessionID string    `gorm:"size:36;not null;index"`
	MessageID string    `gorm:"size:36;not null;index"`
	Value     string    `gorm:"size:16;not null"`
	Excerpt   string    `gorm:"size:200"`
	RatedAt   time.Time `gorm:"autoCreateTime"`
}
