package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"newbusiness/models"
)

var ErrNoTargetURL = errors.New("no webhook URL configured")

// GenerateSecret returns a random 64 character hex secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SetupBidirectional makes sure url receives contact.updated. An existing
// subscription for the url is reused and reactivated; created reports
// whether a new row was written.
func SetupBidirectional(ctx context.Context, db *gorm.DB, url string) (hook *models.Webhook, created bool, err error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false, ErrNoTargetURL
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.Webhook
		if err := tx.Where("url = ?", url).Order("id ASC").Find(&existing).Error; err != nil {
			return err
		}
		for i := range existing {
			if !existing[i].Subscribes(EventContactUpdated) {
				continue
			}
			hook = &existing[i]
			if !hook.IsActive {
				hook.IsActive = true
				return tx.Model(hook).Update("is_active", true).Error
			}
			return nil
		}

		secret, err := GenerateSecret()
		if err != nil {
			return err
		}
		hook = &models.Webhook{
			URL:      url,
			Events:   []string{EventContactUpdated},
			Secret:   secret,
			IsActive: true,
		}
		created = true
		return tx.Create(hook).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to set up bidirectional webhook: %w", err)
	}
	return hook, created, nil
}
