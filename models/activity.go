package models

import (
	"time"
)

// Activity types
const (
	ActivityCall    = "call"
	ActivityEmail   = "email"
	ActivityMeeting = "meeting"
	ActivityNote    = "note"
)

// Activity is an append-only CRM log entry against one advertiser.
type Activity struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	AdvertiserID uint      `gorm:"not null;index" json:"advertiser_id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	ContactID    *uint     `gorm:"index" json:"contact_id,omitempty"`
	ActivityType string    `gorm:"size:50;not null" json:"activity_type"` // call, email, meeting, note
	Description  string    `gorm:"type:text" json:"description"`
	Outcome      string    `gorm:"size:200" json:"outcome"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
