package models

import (
	"gorm.io/gorm"
)

const (
	RoleAdmin            = "admin"
	RoleTeamLead         = "team_lead"
	RoleAccountExecutive = "account_executive"

	SystemUsername = "system"
)

// User is an operator account. Sync-generated rows are owned by the system user.
type User struct {
	gorm.Model

	Username     string `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Role         string `gorm:"size:20;not null;default:account_executive" json:"role"` // admin, team_lead, account_executive
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// Relations
	AssignedAdvertisers []Advertiser `gorm:"foreignKey:AssignedUserID" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsTeamLead() bool {
	return u.Role == RoleAdmin || u.Role == RoleTeamLead
}
