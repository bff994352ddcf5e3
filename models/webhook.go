package models

import (
	"time"

	"gorm.io/gorm"
)

// Webhook is an outbound subscription.
type Webhook struct {
	gorm.Model
	URL      string   `gorm:"size:500;not null" json:"url"`
	Events   []string `gorm:"serializer:json;not null" json:"events"`
	Secret   string   `gorm:"size:255;not null" json:"-"`
	IsActive bool     `gorm:"default:true" json:"is_active"`

	Logs []WebhookLog `gorm:"foreignKey:WebhookID" json:"logs,omitempty"`
}

// Subscribes reports whether the webhook lists event.
func (w *Webhook) Subscribes(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookLog records exactly one delivery attempt. Rows are never updated.
type WebhookLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	WebhookID      uint      `gorm:"not null;index" json:"webhook_id"`
	DeliveryID     string    `gorm:"size:36;index" json:"delivery_id"`
	Event          string    `gorm:"size:100;not null;index" json:"event"`
	Payload        string    `gorm:"type:text" json:"payload"`
	ResponseStatus int       `json:"response_status"` // 0 on transport failure
	ResponseBody   string    `gorm:"type:text" json:"response_body"`
	TriggeredAt    time.Time `gorm:"index" json:"triggered_at"`
}
