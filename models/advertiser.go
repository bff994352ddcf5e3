package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead statuses
const (
	LeadStatusNonQualified = "non_qualified"
	LeadStatusOurs         = "ours"
	LeadStatusCold         = "cold"
	LeadStatusWarm         = "warm"
	LeadStatusHot          = "hot"
	LeadStatusLost         = "lost"
	LeadStatusNonMarket    = "non_market"
	LeadStatusGetInfo      = "get_info"
	LeadStatusNetwork      = "network"
)

var LeadStatuses = []string{
	LeadStatusNonQualified,
	LeadStatusOurs,
	LeadStatusCold,
	LeadStatusWarm,
	LeadStatusHot,
	LeadStatusLost,
	LeadStatusNonMarket,
	LeadStatusGetInfo,
	LeadStatusNetwork,
}

// IsValidLeadStatus reports whether s is one of LeadStatuses.
func IsValidLeadStatus(s string) bool {
	for _, status := range LeadStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Advertiser is a lead or client. Name is the natural key for every external match.
type Advertiser struct {
	gorm.Model

	Name           string `gorm:"size:200;uniqueIndex;not null" json:"name"`
	CurrentAgency  string `gorm:"size:200;index" json:"current_agency"`
	LeadStatus     string `gorm:"size:20;not null;default:non_qualified;index" json:"lead_status"`
	AssignedUserID *uint  `gorm:"index" json:"assigned_user_id,omitempty"`

	// Relations
	SpendingData  []SpendingData      `gorm:"foreignKey:AdvertiserID" json:"spending_data,omitempty"`
	Contacts      []Contact           `gorm:"foreignKey:AdvertiserID" json:"contacts,omitempty"`
	StatusHistory []LeadStatusHistory `gorm:"foreignKey:AdvertiserID" json:"status_history,omitempty"`
}

// LeadStatusHistory is an append-only audit row for a lead_status transition.
type LeadStatusHistory struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	AdvertiserID uint      `gorm:"not null;index" json:"advertiser_id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	OldStatus    string    `gorm:"size:20" json:"old_status"`
	NewStatus    string    `gorm:"size:20;not null" json:"new_status"`
	Reason       string    `gorm:"type:text" json:"reason"`
	ChangedAt    time.Time `gorm:"autoCreateTime" json:"changed_at"`
}

// Attachment holds file metadata only; the file lives elsewhere.
type Attachment struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	AdvertiserID uint      `gorm:"not null;index" json:"advertiser_id"`
	ActivityID   *uint     `gorm:"index" json:"activity_id,omitempty"`
	Filename     string    `gorm:"size:255;not null" json:"filename"`
	FilePath     string    `gorm:"size:500;not null" json:"file_path"`
	UploadedByID uint      `gorm:"not null" json:"uploaded_by_id"`
	UploadedAt   time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}
