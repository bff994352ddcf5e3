package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Contact is one person. AdvertiserID is the primary relationship only;
// every other advertiser relationship is a ContactAdvertiserLink.
type Contact struct {
	gorm.Model
	AdvertiserID *uint  `gorm:"index" json:"advertiser_id"`
	AgencyCRMID  *int   `gorm:"index" json:"agency_crm_id"`
	FirstName    string `gorm:"size:100;not null" json:"first_name"`
	LastName     string `gorm:"size:100;not null" json:"last_name"`
	Email        string `gorm:"size:200;index" json:"email"`
	Phone        string `gorm:"size:50" json:"phone"`
	LinkedInURL  string `gorm:"size:500" json:"linkedin_url"`
	AddedByID    uint   `gorm:"not null" json:"added_by_id"`

	// Relations
	Advertiser *Advertiser             `gorm:"foreignKey:AdvertiserID" json:"advertiser,omitempty"`
	Links      []ContactAdvertiserLink `gorm:"foreignKey:ContactID" json:"links,omitempty"`
}

func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ContactAdvertiserLink is a secondary contact-advertiser relationship.
type ContactAdvertiserLink struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	ContactID    uint      `gorm:"not null;uniqueIndex:idx_contact_advertiser" json:"contact_id"`
	AdvertiserID uint      `gorm:"not null;uniqueIndex:idx_contact_advertiser;index" json:"advertiser_id"`
	CreatedAt    time.Time `json:"created_at"`

	Advertiser *Advertiser `gorm:"foreignKey:AdvertiserID" json:"advertiser,omitempty"`
}
