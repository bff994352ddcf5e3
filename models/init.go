package models

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Advertiser{},
		&SpendingData{},
		&Contact{},
		&ContactAdvertiserLink{},
		&Activity{},
		&LeadStatusHistory{},
		&Attachment{},
		&Webhook{},
		&WebhookLog{},
		&SyncRun{},
	}
}

// EnsureSystemUser returns the system user, creating it on first use.
// Without a password the account cannot log in.
func EnsureSystemUser(db *gorm.DB, password string) (*User, error) {
	var user User
	err := db.Where("username = ?", SystemUsername).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up system user: %w", err)
	}

	user = User{
		Username: SystemUsername,
		Email:    "system@internal.local",
		Role:     RoleAdmin,
		IsActive: true,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash system password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create system user: %w", err)
	}
	return &user, nil
}
