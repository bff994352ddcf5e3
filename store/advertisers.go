// Package store holds the entity-store operations shared by the sync engine,
// the importers and the HTTP controllers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/utils"
)

var ErrNotFound = errors.New("record not found")

// AdvertiserSummary is an advertiser with the figures of its most recent year.
type AdvertiserSummary struct {
	models.Advertiser
	LatestYear    int     `json:"latest_year,omitempty"`
	GrossSpending float64 `json:"last_year_gross_spending"`
	NetSpending   float64 `json:"last_year_net_spending"`
}

// ListFilter narrows ListAdvertisers.
type ListFilter struct {
	Search         string
	Status         string
	Agency         string
	AssignedUserID *uint
	Page           int
	Limit          int
}

// LatestSpending returns the row with the highest calendar year, or nil.
func LatestSpending(ctx context.Context, db *gorm.DB, advertiserID uint) (*models.SpendingData, error) {
	var row models.SpendingData
	err := db.WithContext(ctx).
		Where("advertiser_id = ?", advertiserID).
		Order("year DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Summarize computes the listing figures from already loaded spending rows.
func Summarize(adv models.Advertiser) AdvertiserSummary {
	summary := AdvertiserSummary{Advertiser: adv}
	var latest *models.SpendingData
	for i := range adv.SpendingData {
		row := &adv.SpendingData[i]
		if latest == nil || row.Year > latest.Year {
			latest = row
		}
	}
	if latest != nil {
		summary.LatestYear = latest.Year
		summary.GrossSpending = latest.GrandTotal
		summary.NetSpending = latest.CalculatedNetTotal()
	}
	summary.SpendingData = nil
	return summary
}

// ListAdvertisers returns advertisers ordered by the net spend of their most
// recent year, highest first, ties broken by name. Search matches the name
// or current agency after case folding.
func ListAdvertisers(ctx context.Context, db *gorm.DB, f ListFilter) ([]AdvertiserSummary, int64, error) {
	q := db.WithContext(ctx).Model(&models.Advertiser{})
	if f.Status != "" {
		q = q.Where("lead_status = ?", f.Status)
	}
	if f.Agency != "" {
		q = q.Where("current_agency = ?", f.Agency)
	}
	if f.AssignedUserID != nil {
		q = q.Where("assigned_user_id = ?", *f.AssignedUserID)
	}

	var advertisers []models.Advertiser
	if err := q.Preload("SpendingData").Find(&advertisers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list advertisers: %w", err)
	}

	search := utils.FoldName(f.Search)
	summaries := make([]AdvertiserSummary, 0, len(advertisers))
	for _, adv := range advertisers {
		if search != "" &&
			!strings.Contains(utils.FoldName(adv.Name), search) &&
			!strings.Contains(utils.FoldName(adv.CurrentAgency), search) {
			continue
		}
		summaries = append(summaries, Summarize(adv))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].NetSpending != summaries[j].NetSpending {
			return summaries[i].NetSpending > summaries[j].NetSpending
		}
		return summaries[i].Name < summaries[j].Name
	})

	total := int64(len(summaries))
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.Limit
		if start >= len(summaries) {
			return []AdvertiserSummary{}, total, nil
		}
		end := start + f.Limit
		if end > len(summaries) {
			end = len(summaries)
		}
		summaries = summaries[start:end]
	}
	return summaries, total, nil
}

// Agencies returns the distinct non-empty current_agency values.
func Agencies(ctx context.Context, db *gorm.DB) ([]string, error) {
	var agencies []string
	err := db.WithContext(ctx).Model(&models.Advertiser{}).
		Where("current_agency IS NOT NULL AND current_agency <> ''").
		Distinct().
		Order("current_agency").
		Pluck("current_agency", &agencies).Error
	return agencies, err
}

// DeleteAdvertiser removes an advertiser together with its spending rows,
// activities, status history, attachments and contact links. Contacts that
// had it as primary advertiser are kept with a null advertiser_id.
func DeleteAdvertiser(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var adv models.Advertiser
		if err := tx.First(&adv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Model(&models.Contact{}).
			Where("advertiser_id = ?", id).
			Update("advertiser_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach contacts: %w", err)
		}

		for _, model := range []interface{}{
			&models.ContactAdvertiserLink{},
			&models.SpendingData{},
			&models.Attachment{},
			&models.Activity{},
			&models.LeadStatusHistory{},
		} {
			if err := tx.Unscoped().Where("advertiser_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete dependent rows: %w", err)
			}
		}

		return tx.Unscoped().Delete(&adv).Error
	})
}

// ChangeLeadStatus sets a new lead status and records the transition.
// Setting the current status again is a no-op.
func ChangeLeadStatus(tx *gorm.DB, adv *models.Advertiser, newStatus string, userID uint, reason string) (bool, error) {
	if adv.LeadStatus == newStatus {
		return false, nil
	}
	history := models.LeadStatusHistory{
		AdvertiserID: adv.ID,
		UserID:       userID,
		OldStatus:    adv.LeadStatus,
		NewStatus:    newStatus,
		Reason:       reason,
	}
	if err := tx.Create(&history).Error; err != nil {
		return false, fmt.Errorf("failed to record status change: %w", err)
	}
	if err := tx.Model(adv).Update("lead_status", newStatus).Error; err != nil {
		return false, fmt.Errorf("failed to update lead status: %w", err)
	}
	adv.LeadStatus = newStatus
	return true, nil
}

// FindAdvertiserByName does an exact name lookup.
func FindAdvertiserByName(tx *gorm.DB, name string) (*models.Advertiser, error) {
	var adv models.Advertiser
	err := tx.Where("name = ?", name).First(&adv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &adv, nil
}
