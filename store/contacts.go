package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"newbusiness/models"
)

// RelatedAdvertisers returns the contact's primary advertiser followed by
// every linked advertiser, deduplicated, in link id order.
func RelatedAdvertisers(ctx context.Context, db *gorm.DB, contact *models.Contact) ([]models.Advertiser, error) {
	related := []models.Advertiser{}
	seen := map[uint]bool{}

	if contact.AdvertiserID != nil {
		var primary models.Advertiser
		err := db.WithContext(ctx).First(&primary, *contact.AdvertiserID).Error
		switch {
		case err == nil:
			related = append(related, primary)
			seen[primary.ID] = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to load primary advertiser: %w", err)
		}
	}

	var links []models.ContactAdvertiserLink
	if err := db.WithContext(ctx).
		Preload("Advertiser").
		Where("contact_id = ?", contact.ID).
		Order("id ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load contact links: %w", err)
	}
	for _, link := range links {
		if link.Advertiser == nil || seen[link.AdvertiserID] {
			continue
		}
		related = append(related, *link.Advertiser)
		seen[link.AdvertiserID] = true
	}
	return related, nil
}

// ReplaceLinks drops every link of the contact and creates one per advertiser
// id, skipping the primary and duplicates.
func ReplaceLinks(tx *gorm.DB, contact *models.Contact, advertiserIDs []uint) error {
	if err := tx.Where("contact_id = ?", contact.ID).Delete(&models.ContactAdvertiserLink{}).Error; err != nil {
		return fmt.Errorf("failed to clear contact links: %w", err)
	}

	seen := map[uint]bool{}
	if contact.AdvertiserID != nil {
		seen[*contact.AdvertiserID] = true
	}
	for _, id := range advertiserIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		link := models.ContactAdvertiserLink{ContactID: contact.ID, AdvertiserID: id}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to link contact %d to advertiser %d: %w", contact.ID, id, err)
		}
	}
	return nil
}

// LogActivity appends an activity, stamping it with now when unset.
func LogActivity(tx *gorm.DB, activity *models.Activity) error {
	if activity.ActivityType == "" {
		activity.ActivityType = models.ActivityNote
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	if err := tx.Create(activity).Error; err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// HasActivity reports whether the advertiser already has a note whose
// description contains marker.
func HasActivity(tx *gorm.DB, advertiserID uint, marker string) (bool, error) {
	var count int64
	err := tx.Model(&models.Activity{}).
		Where("advertiser_id = ? AND activity_type = ?", advertiserID, models.ActivityNote).
		Where("description LIKE ?", "%"+marker+"%").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasNote reports whether the advertiser has a note with exactly this
// description, and this outcome when outcome is not empty.
func HasNote(tx *gorm.DB, advertiserID uint, description, outcome string) (bool, error) {
	q := tx.Model(&models.Activity{}).
		Where("advertiser_id = ? AND activity_type = ? AND description = ?", advertiserID, models.ActivityNote, description)
	if outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AdvertiserContacts returns contacts whose primary advertiser is
// advertiserID or that are linked to it, in id order.
func AdvertiserContacts(ctx context.Context, db *gorm.DB, advertiserID uint) ([]models.Contact, error) {
	var contacts []models.Contact
	linked := db.Model(&models.ContactAdvertiserLink{}).
		Select("contact_id").
		Where("advertiser_id = ?", advertiserID)
	err := db.WithContext(ctx).
		Where("advertiser_id = ? OR id IN (?)", advertiserID, linked).
		Order("id ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load advertiser contacts: %w", err)
	}
	return contacts, nil
}
